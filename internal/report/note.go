package report

import "fmt"

// InstallNote implements the display-only install-time note table of
// spec §6.
func InstallNote(rowType string, metadata map[string]string) string {
	switch rowType {
	case "bioc":
		return "(BioC)"
	case "local":
		return "(local)"
	case "github":
		user := metadata["RemoteUsername"]
		repo := metadata["RemoteRepo"]
		sha := metadata["RemoteSha"]
		if len(sha) > 7 {
			sha = sha[:7]
		}
		return fmt.Sprintf("(github::%s/%s@%s)", user, repo, sha)
	case "cran", "standard":
		if sub, ok := metadata["RemoteType"]; ok && sub != "" && sub != "standard" {
			return fmt.Sprintf("(%s)", sub)
		}
		return ""
	default:
		return ""
	}
}
