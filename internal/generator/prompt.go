package generator

import (
	"fmt"
	"strings"
)

// systemInstruction is the fixed preamble of every generation prompt.
// It pins down the execution contract the sandbox enforces on its side:
// the DataFrame name, the allowed libraries, the single-output rule, and
// the output.png artifact convention.
const systemInstruction = `You are an expert Python data analyst. Your task is to generate Python code
to analyze and visualize a pandas DataFrame.

- The DataFrame is already loaded and available in a variable named ` + "`df`" + `.
- You must generate code that uses pandas, matplotlib, or seaborn.
- Your code should produce a single plot or a DataFrame as output.
- IMPORTANT: To display the output, you must save any generated plot to a file
  named 'output.png'. If the result is a DataFrame, it should be the final
  expression in the script.
- Do not include any sample data creation (e.g., ` + "`pd.DataFrame(...)`" + `).
- The code should be a single, executable snippet.`

// Input carries the three text blocks that vary per request. Schema and
// Head are regenerated from the dataset on every call — never cached.
type Input struct {
	Prompt string // the user's free-text request
	Schema string // dataset.Describe() output
	Head   string // dataset.Head() output
}

// BuildPrompt composes the single prompt sent to the completion endpoint.
// All four pieces are embedded verbatim; the user request is quoted so the
// model can tell instruction from data.
func BuildPrompt(in Input) string {
	return fmt.Sprintf(`System Instruction:
%s

Here is the schema of the DataFrame `+"`df`"+`:
%s

Here are the first rows of the data:
%s

User Request:
%q

Generate the Python code to fulfill this request.`,
		systemInstruction, in.Schema, in.Head, in.Prompt)
}

// StripFences removes a leading markdown code-fence marker tagged as Python
// and any trailing fence backticks, leaving bare source text. Responses with
// no fencing come back unchanged apart from surrounding whitespace — the
// only sanitization the pipeline performs on generated code.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```python") {
		return t
	}
	t = strings.TrimPrefix(t, "```python")
	t = strings.Trim(t, "`")
	return strings.TrimSpace(t)
}
