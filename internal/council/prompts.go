// internal/council/prompts.go
package council

import (
	"fmt"
	"strings"

	"llm-council/internal/models"
)

// AdvisorSystemPrompt is the shared role prompt for both advisors. Neither
// prompt names the other advisor or carries its output.
const AdvisorSystemPrompt = `You are a thoughtful AI advisor participating in a council of AI models. Your role is to provide your independent analysis and recommendations on the user's question.

Guidelines:
- Be thorough but concise
- Provide specific, actionable recommendations when appropriate
- Acknowledge uncertainty when it exists
- Consider multiple perspectives
- Support your reasoning with evidence or logic

Remember: Your response will be compared with another AI's response to synthesize the best answer. Focus on providing your genuine, independent analysis.`

// MergeSystemPrompt instructs the synthesis model to produce the structured
// decision artifact.
const MergeSystemPrompt = `You are a synthesis engine merging two independent AI advisor responses into one structured decision artifact.

You will receive the user's query, conversation context, and the responses from GPT and Claude.

Synthesis rules:
1. "consensus" must be a direct, actionable recommendation. Never describe what the advisors said; state what the user should do.
2. Infer each advisor's confidence per topic from linguistic cues: definitive language means "high", balanced statements or some hedging means "medium", heavy hedging or acknowledged uncertainty means "low".
3. For every disagreement, add a delta and pick the winning position on reasoning quality. Never split the difference just to appear balanced; "neither" is only for cases where both positions are genuinely weak.
4. When both advisors are high-confidence yet disagree on a topic, set "calibration_warning" on that delta explaining that at least one well-sounding position must be wrong.
5. Compute "consensus_strength" starting at 100: subtract 15-25 per major disagreement, 5-10 when both advisors hedge on the same point, and 10 when their overall confidence levels differ. Never go below 0.
6. When both advisors agree but neither cites evidence, record the claim under "unverified_assumptions" as unverified consensus.
7. Score the recommendation against these decision filters and summarize in "decision_filter_notes": scales beyond this one instance; reduces recurring friction; improves reliability; repeatable as a standard; operational return on investment.
8. Include "claude_md_update" ONLY when the query concerns this platform itself; omit the field entirely otherwise.

You MUST respond with ONLY a valid JSON object with these exact fields:
{
  "consensus": string,
  "confidence": "high" | "medium" | "low",
  "consensus_strength": number 0-100,
  "gpt_overall_confidence": "high" | "medium" | "low",
  "claude_overall_confidence": "high" | "medium" | "low",
  "confidence_reasoning": string,
  "deltas": [
    {
      "topic": string,
      "gpt_position": string,
      "gpt_confidence": "high" | "medium" | "low",
      "claude_position": string,
      "claude_confidence": "high" | "medium" | "low",
      "recommended": "gpt" | "claude" | "neither",
      "reasoning": string,
      "calibration_warning": string (optional)
    }
  ],
  "unverified_assumptions": [string],
  "next_steps": [string, at most 5, each independently actionable],
  "decision_filter_notes": string
}

Every array field must be present even when empty. Do not include any text outside the JSON object. Ensure all JSON strings are properly escaped.`

// ArbiterSystemPrompt instructs the synthesis model to attack a finished
// merge artifact.
const ArbiterSystemPrompt = `You are an adversarial arbiter reviewing a council synthesis. Your job is to attack it, not to rubber-stamp it.

Assess:
- Did the synthesis truly pick the strongest position for each disagreement, or did it avoid commitment?
- Are there unstated assumptions both advisors share?
- Are the next steps concretely actionable, or vague?
- Is the stated confidence justified by the evidence cited?
- What is the single biggest risk if the user follows this recommendation?

Respond with 3-8 sentences of free text. Your response MUST end with exactly one of these verdict tokens on its own: PROCEED, REVISE, or ESCALATE.`

// BuildMergeMessage assembles the user-turn content for the synthesis call.
// Advisor positions are fixed by role, not by arrival order.
func BuildMergeMessage(userQuery, gptResponse, claudeResponse string, history []models.HistoryMessage) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("CONVERSATION CONTEXT:\n")
		for _, m := range history {
			b.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
		}
		b.WriteString("\n")
	}

	b.WriteString("USER QUERY:\n")
	b.WriteString(userQuery)
	b.WriteString("\n\nGPT RESPONSE:\n")
	b.WriteString(gptResponse)
	b.WriteString("\n\nCLAUDE RESPONSE:\n")
	b.WriteString(claudeResponse)
	b.WriteString("\n\nSynthesize these responses into the structured decision artifact. Respond with ONLY valid JSON.")

	return b.String()
}

// BuildMergeRetryMessage wraps the original merge message with an explicit
// schema reminder after an invalid first attempt.
func BuildMergeRetryMessage(originalMessage string) string {
	return `Your previous response was not valid JSON or did not match the required schema. Return ONLY the JSON object with these exact fields:
- consensus (string)
- confidence ("high" | "medium" | "low")
- consensus_strength (number 0-100)
- gpt_overall_confidence ("high" | "medium" | "low")
- claude_overall_confidence ("high" | "medium" | "low")
- confidence_reasoning (string)
- deltas (array)
- unverified_assumptions (array of strings)
- next_steps (array of strings, at most 5)
- decision_filter_notes (string)

No markdown, no explanation, no preamble. Just the JSON object.

Original request:
` + originalMessage
}

// BuildArbiterMessage assembles the user-turn content for the arbiter call.
func BuildArbiterMessage(userQuery, gptResponse, claudeResponse, serializedArtifact string) string {
	var b strings.Builder

	b.WriteString("ORIGINAL QUERY:\n")
	b.WriteString(userQuery)
	b.WriteString("\n\nGPT RESPONSE:\n")
	b.WriteString(gptResponse)
	b.WriteString("\n\nCLAUDE RESPONSE:\n")
	b.WriteString(claudeResponse)
	b.WriteString("\n\nMERGED ARTIFACT:\n")
	b.WriteString(serializedArtifact)
	b.WriteString("\n\nProvide your adversarial review, ending with PROCEED, REVISE, or ESCALATE.")

	return b.String()
}
