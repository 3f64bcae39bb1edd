package pipeline

import "strings"

type DetectResult struct {
	IsExport bool
	Score    float64
	Reason   string
}

var detectKeywords = []string{"audit", "moto", "export", "visit", "tracker"}

// DetectAuditExport scores whether a mail carries the audit export. Having
// parsed rows with the required headers is the strongest signal.
func DetectAuditExport(subject string, attachmentNames []string, hasRows bool, threshold float64) DetectResult {
	subject = strings.ToLower(subject)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.15
		}
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.Contains(ln, "audits_basic_data_export") {
			score += 0.35
			break
		}
		if strings.HasSuffix(ln, ".csv") || strings.HasSuffix(ln, ".xlsx") {
			score += 0.15
			break
		}
	}

	if hasRows {
		score += 0.5
	}
	if score > 1 {
		score = 1
	}

	isExport := score >= threshold
	reason := "rules_negative"
	if isExport {
		reason = "rules_positive"
	}
	return DetectResult{IsExport: isExport, Score: score, Reason: reason}
}
