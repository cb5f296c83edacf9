package email

import (
	"fmt"
	"strings"

	"github.com/fgeck/backupkit/internal/models"
	"github.com/fgeck/backupkit/internal/size"
)

// BuildSummary renders a backup report as a plain-text email.
func BuildSummary(report models.BackupReport) (subject, body string) {
	status, prefix := "✅ ALL CHECKS PASSED", "[OK]"
	if !report.OK() {
		status, prefix = "❌ ERRORS DETECTED", "[ALERT]"
	}

	subject = fmt.Sprintf("%s Backup Check Report - %s", prefix, report.StartTime.Format("2006-01-02 15:04"))

	var b strings.Builder
	b.WriteString("Backup Check Report\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", report.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Duration: %.2f seconds\n\n", report.Duration.Seconds())

	if len(report.Results) > 0 {
		b.WriteString("BACKUP CHECK RESULTS:\n")
		b.WriteString(strings.Repeat("-", 25) + "\n")
		for _, r := range report.Results {
			icon := "✅"
			if !r.Success {
				icon = "❌"
			}
			fmt.Fprintf(&b, "%s %s: %s\n", icon, r.Name, size.MustFormat(r.TotalSize))
			if !r.Success {
				msg := r.Error
				if msg == "" {
					msg = "Unknown error"
				}
				fmt.Fprintf(&b, "   Error: %s\n", msg)
			}
		}
		b.WriteString("\n")
	}

	if len(report.FreeSpace) > 0 {
		b.WriteString("FREE SPACE:\n")
		b.WriteString(strings.Repeat("-", 11) + "\n")
		for _, fs := range report.FreeSpace {
			fmt.Fprintf(&b, "%s: %s\n", fs.Path, fs.Message)
		}
		b.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		b.WriteString("ERRORS DETECTED:\n")
		b.WriteString(strings.Repeat("-", 17) + "\n")
		for i, e := range report.Errors {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e)
		}
		b.WriteString("\n")
	}

	host := report.Host
	if host == "" {
		host = "Unknown"
	}
	b.WriteString(strings.Repeat("-", 40) + "\n")
	b.WriteString("Generated by backupkit\n")
	fmt.Fprintf(&b, "Server: %s", host)

	return subject, b.String()
}
