package backup

import (
	"strings"
	"time"

	"github.com/chenjianlong/ftpbackup/pkg/i18n"
)

// Report renders the notification subject and body for result.
func Report(result BackupResult) (subject, body string) {
	if result.Success() {
		subject = i18n.Localize("BackupSuccessful", nil)
		body = i18n.Localize("BackupSuccessfulBody", map[string]interface{}{
			"Count":     len(result.Outcomes),
			"RemoteDir": result.RemoteDir,
			"Duration":  result.Finished.Sub(result.Started).Round(time.Millisecond),
		})
		return subject, body
	}

	subject = i18n.Localize("BackupFailed", nil)
	if result.Err != nil {
		body = i18n.Localize("BackupAbortedBody", map[string]interface{}{
			"Error": result.Err.Error(),
		})
		return subject, body
	}

	lines := []string{i18n.Localize("BackupFilesFailedBody", map[string]interface{}{
		"Failed": len(result.Failures),
		"Total":  len(result.Outcomes),
	}), ""}
	for _, outcome := range result.Failures {
		lines = append(lines, failureLine(outcome))
	}
	return subject, strings.Join(lines, "\n")
}

func failureLine(outcome TransferOutcome) string {
	if outcome.Status == HashMismatch {
		return i18n.Localize("HashMismatchLine", map[string]interface{}{
			"Name":   outcome.FileName,
			"Local":  outcome.LocalDigest,
			"Remote": outcome.RemoteDigest,
		})
	}

	errMsg := outcome.Status.String()
	if outcome.Err != nil {
		errMsg = outcome.Err.Error()
	}
	return i18n.Localize("TransferErrorLine", map[string]interface{}{
		"Name":  outcome.FileName,
		"Error": errMsg,
	})
}
