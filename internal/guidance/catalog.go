package guidance

import (
	"fmt"
	"strings"

	"github.com/m365ops/watchtower/internal/model"
)

// catalog maps a problem-type key to its remediation bundle. The table is
// static; monitors render bundles into their alert descriptions.
var catalog = map[string]model.GuidanceBundle{
	"mail_queue_buildup": {
		Steps: []string{
			"Check message trace for stuck messages",
			"Verify outbound connector health",
			"Review transport rules for recent changes",
			"Check recipient domain MX resolution",
		},
		Permissions: []string{"Exchange Administrator"},
		Tools:       []string{"Exchange admin center", "Message trace"},
		Commands: []string{
			"Get-Queue | Sort-Object MessageCount -Descending",
			"Get-MessageTrace -StartDate (Get-Date).AddHours(-1)",
		},
	},
	"mailbox_storage_full": {
		Steps: []string{
			"Identify mailboxes near quota",
			"Enable or verify archive mailboxes",
			"Review retention policy assignment",
		},
		Permissions: []string{"Exchange Administrator"},
		Tools:       []string{"Exchange admin center"},
		Commands: []string{
			"Get-MailboxStatistics -Identity <user> | Select TotalItemSize",
			"Enable-Mailbox -Identity <user> -Archive",
		},
	},
	"sharepoint_storage": {
		Steps: []string{
			"Review site collection storage usage",
			"Empty site recycle bins",
			"Adjust site storage limits or purchase additional storage",
		},
		Permissions: []string{"SharePoint Administrator"},
		Tools:       []string{"SharePoint admin center"},
		Commands: []string{
			"Get-SPOSite -Detailed | Sort-Object StorageUsageCurrent -Descending",
		},
	},
	"teams_meeting_quality": {
		Steps: []string{
			"Review call quality dashboard for affected users",
			"Check network egress and QoS markings",
			"Verify media ports are not blocked",
		},
		Permissions: []string{"Teams Administrator"},
		Tools:       []string{"Call Quality Dashboard", "Teams admin center"},
		Commands: []string{
			"Get-CsTeamsMeetingPolicy",
		},
	},
	"license_exhaustion": {
		Steps: []string{
			"Review license assignment report",
			"Reclaim licenses from disabled accounts",
			"Raise a purchase request if usage is legitimate",
		},
		Permissions: []string{"License Administrator"},
		Tools:       []string{"Microsoft 365 admin center"},
	},
	"endpoint_unreachable": {
		Steps: []string{
			"Confirm the outage from a second network path",
			"Check the service health dashboard",
			"Verify DNS resolution and TLS certificate validity",
		},
		Tools: []string{"Service health dashboard"},
		Commands: []string{
			"nslookup <endpoint>",
			"curl -sv https://<endpoint>/",
		},
	},
	"high_cpu_usage": {
		Steps: []string{
			"Identify the top CPU consumers",
			"Check for runaway monitoring checks",
			"Scale the host or move workloads if load is sustained",
		},
		Commands: []string{
			"top -o %CPU",
			"ps aux --sort=-%cpu | head",
		},
	},
	"high_memory_usage": {
		Steps: []string{
			"Identify the top memory consumers",
			"Check for leaking processes",
			"Add swap or scale the host if pressure is sustained",
		},
		Commands: []string{
			"free -m",
			"ps aux --sort=-%mem | head",
		},
	},
}

// Lookup returns the remediation bundle for a problem type. Unknown problem
// types yield an empty bundle, never an error; callers omit the guidance
// section of their description when the bundle is empty.
func Lookup(problemType string) model.GuidanceBundle {
	return catalog[problemType]
}

// Describe renders a summary line followed by the bundle's non-empty
// sections into an alert description
func Describe(summary string, bundle model.GuidanceBundle) string {
	var b strings.Builder
	b.WriteString(summary)
	if bundle.Empty() {
		return b.String()
	}
	if len(bundle.Steps) > 0 {
		b.WriteString("\n\nRemediation steps:")
		for i, step := range bundle.Steps {
			fmt.Fprintf(&b, "\n%d. %s", i+1, step)
		}
	}
	if len(bundle.Permissions) > 0 {
		fmt.Fprintf(&b, "\n\nRequired permissions: %s", strings.Join(bundle.Permissions, ", "))
	}
	if len(bundle.Tools) > 0 {
		fmt.Fprintf(&b, "\nTools: %s", strings.Join(bundle.Tools, ", "))
	}
	if len(bundle.Commands) > 0 {
		b.WriteString("\n\nCommands:")
		for _, cmd := range bundle.Commands {
			fmt.Fprintf(&b, "\n  %s", cmd)
		}
	}
	return b.String()
}
