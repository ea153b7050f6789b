package extract

import "regexp"

// Rule is one classification pattern with a human-readable description.
type Rule struct {
	Pattern *regexp.Regexp
	Desc    string
}

// ruleSet binds a category to its ordered rules.
type ruleSet struct {
	Category Category
	Rules    []Rule
}

func rule(pattern, desc string) Rule {
	return Rule{Pattern: regexp.MustCompile(`(?i)` + pattern), Desc: desc}
}

// ruleTable is the process-wide classification table, compiled once at init
// and shared read-only across all concurrent classification calls. The slice
// order is the tie-break order: when two categories score equally, the one
// declared first wins. Adding a rule changes that category's denominator,
// so confidence values shift when the table grows.
var ruleTable = []ruleSet{
	{
		Category: CategoryPerformance,
		Rules: []Rule{
			rule(`shall\s+(?:maintain|achieve|ensure|provide|support)\s+.*?(?:\d+%|\d+\s+(?:seconds|minutes|hours|days))`, "obligation with quantified target"),
			rule(`uptime.*?\d+%`, "uptime percentage"),
			rule(`response\s+time.*?\d+\s+(?:seconds|milliseconds)`, "response time bound"),
			rule(`availability.*?\d+%`, "availability percentage"),
			rule(`processing.*?within\s+\d+`, "processing time bound"),
			rule(`latency.*?\d+`, "latency bound"),
		},
	},
	{
		Category: CategoryCompliance,
		Rules: []Rule{
			rule(`shall\s+comply\s+with`, "explicit compliance obligation"),
			rule(`must\s+(?:meet|satisfy|adhere\s+to)`, "conformance obligation"),
			rule(`in\s+accordance\s+with`, "reference to governing standard"),
			rule(`(?:FISMA|NIST|ISO|SOC|HIPAA|FedRAMP)`, "named regulatory regime"),
			rule(`encryption.*?(?:AES|TLS|SSL)`, "cryptographic standard"),
			rule(`security\s+(?:standards|requirements|controls)`, "security control language"),
			rule(`audit.*?requirements`, "audit requirement"),
			rule(`(?:authentication|authorization).*?(?:MFA|multi-factor)`, "authentication standard"),
		},
	},
	{
		Category: CategoryDeliverable,
		Rules: []Rule{
			rule(`shall\s+(?:submit|provide|deliver|furnish)`, "submission obligation"),
			rule(`(?:report|documentation|deliverable).*?(?:monthly|weekly|quarterly|annually)`, "periodic artifact cadence"),
			rule(`contractor\s+shall\s+prepare`, "preparation obligation"),
			rule(`(?:plan|document|report).*?shall\s+be\s+(?:submitted|provided|delivered)`, "passive submission obligation"),
			rule(`by\s+the\s+\d+(?:st|nd|rd|th)\s+(?:day|business\s+day)`, "day-of-month deadline"),
		},
	},
}

// Categories returns the classification categories in tie-break order.
func Categories() []Category {
	out := make([]Category, len(ruleTable))
	for i, rs := range ruleTable {
		out[i] = rs.Category
	}
	return out
}
