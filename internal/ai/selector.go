package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ModuleTypes lists the framework module types in execution order:
// reconnaissance first, post-exploitation last.
var ModuleTypes = []string{"auxiliary", "exploit", "payload", "encoder", "nop", "post", "evasion"}

// PlanEntry is one recommended module in a selection plan.
type PlanEntry struct {
	Module             string                 `json:"module"`
	Priority           string                 `json:"priority"`
	Rationale          string                 `json:"rationale"`
	Options            map[string]interface{} `json:"options,omitempty"`
	RecommendedPayload string                 `json:"recommended_payload,omitempty"`
}

// Plan is the parsed module selection for a target.
type Plan struct {
	TargetAnalysis string                 `json:"target_analysis"`
	ExecutionOrder []string               `json:"execution_order"`
	Modules        map[string][]PlanEntry `json:"modules"`
}

// Selected is a plan entry paired with its module type, in run order.
type Selected struct {
	Type  string
	Entry PlanEntry
}

// Count returns the total number of modules across all types.
func (p *Plan) Count() int {
	n := 0
	for _, typ := range ModuleTypes {
		n += len(p.Modules[typ])
	}
	return n
}

// Selector asks an LLM for a module plan for a target.
type Selector struct {
	client Client
}

// NewSelector wraps a provider client.
func NewSelector(client Client) *Selector {
	return &Selector{client: client}
}

const selectorSystem = "You are a cybersecurity expert specializing in Metasploit Framework. " +
	"Provide specific, actionable module recommendations for authorized penetration testing."

// SelectModules asks the provider for a plan. targetInfo is optional
// context (open ports, banners) included verbatim as JSON.
func (s *Selector) SelectModules(ctx context.Context, target string, targetInfo map[string]interface{}) (*Plan, error) {
	prompt, err := buildSelectionPrompt(target, targetInfo)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Complete(ctx, Request{
		System:      selectorSystem,
		Prompt:      prompt,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("module selection: %w", err)
	}

	return ParsePlan(raw)
}

// ParsePlan decodes a selection response, tolerating a markdown code fence
// around the JSON body.
func ParsePlan(raw string) (*Plan, error) {
	plan := &Plan{}
	if err := json.Unmarshal([]byte(stripFences(raw)), plan); err != nil {
		return nil, fmt.Errorf("parsing selection response: %w (raw: %.200s)", err, raw)
	}
	if plan.Modules == nil {
		plan.Modules = map[string][]PlanEntry{}
	}
	return plan, nil
}

var priorityRank = map[string]int{"high": 3, "medium": 2, "low": 1}

// FilterPriority returns a copy of the plan keeping only entries at or
// above min ("high", "medium" or "low"). Entries with an unknown priority
// rank as low.
func FilterPriority(plan *Plan, min string) *Plan {
	threshold, ok := priorityRank[min]
	if !ok {
		threshold = 1
	}

	filtered := &Plan{
		TargetAnalysis: plan.TargetAnalysis,
		ExecutionOrder: plan.ExecutionOrder,
		Modules:        map[string][]PlanEntry{},
	}
	for _, typ := range ModuleTypes {
		for _, entry := range plan.Modules[typ] {
			rank, ok := priorityRank[strings.ToLower(entry.Priority)]
			if !ok {
				rank = 1
			}
			if rank >= threshold {
				filtered.Modules[typ] = append(filtered.Modules[typ], entry)
			}
		}
	}
	return filtered
}

// Flatten orders the plan's entries by module type for sequential
// execution.
func Flatten(plan *Plan) []Selected {
	var out []Selected
	for _, typ := range ModuleTypes {
		for _, entry := range plan.Modules[typ] {
			out = append(out, Selected{Type: typ, Entry: entry})
		}
	}
	return out
}

func buildSelectionPrompt(target string, targetInfo map[string]interface{}) (string, error) {
	var b strings.Builder

	b.WriteString("You are a penetration testing expert using Metasploit Framework.\n")
	b.WriteString("Analyze the target and recommend specific Metasploit modules to run.\n\n")
	fmt.Fprintf(&b, "Target: %s\n", target)

	if len(targetInfo) > 0 {
		info, err := json.MarshalIndent(targetInfo, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding target info: %w", err)
		}
		fmt.Fprintf(&b, "\nAdditional Information:\n%s\n", info)
	}

	b.WriteString(`
Based on the target, recommend specific Metasploit modules to test. Consider:

1. **Target Type**: Is it a URL (web app), IP address, hostname, service, etc?
2. **Common Vulnerabilities**: What modules would test for common vulnerabilities?
3. **Reconnaissance**: What auxiliary modules would gather information?
4. **Exploitation**: If vulnerabilities are likely, what exploit modules?
5. **Post-Exploitation**: What post modules might be useful after compromise?
6. **Payloads**: What payloads would be appropriate?
7. **Evasion**: Any evasion techniques needed?
8. **Encoders/NOPs**: Any encoding or NOP requirements?

Provide your recommendations in JSON format with the following structure:
{
  "target_analysis": "Brief analysis of the target and attack approach",
  "execution_order": ["phase1_description", "phase2_description"],
  "modules": {
    "auxiliary": [
      {
        "module": "auxiliary/scanner/http/http_version",
        "priority": "high|medium|low",
        "rationale": "Why this module",
        "options": {"key": "value"}
      }
    ],
    "exploit": [
      {
        "module": "exploit/unix/webapp/example",
        "priority": "high|medium|low",
        "rationale": "Why this exploit",
        "options": {"key": "value"},
        "recommended_payload": "payload/generic/shell_reverse_tcp"
      }
    ],
    "payload": [],
    "post": [],
    "encoder": [],
    "nop": [],
    "evasion": []
  }
}

Important:
- Use real, existing Metasploit module paths
- Prioritize modules based on likelihood of success and information value
- Include proper options for each module where applicable
- For web targets (URLs), focus on web application modules
- For IP addresses, include network scanning and service enumeration
- Only recommend modules that are appropriate for AUTHORIZED security testing
- Be specific and practical

Only respond with valid JSON, no additional text.`)

	return b.String(), nil
}
