package conv

import "strings"

// SystemPrompt returns the system instructions for the given mode.
//
// Discussion and planning turns ask for structured markdown; building turns
// ask for a raw JSON file map and nothing else. The building contract is the
// one the normalizer depends on, so it is spelled out aggressively: models
// still wrap output in fences or reasoning tags often enough that the
// normalizer has to repair it anyway.
func SystemPrompt(mode Mode, context string) string {
	var b strings.Builder

	if mode.Type == ModeDiscussion || mode.Type == ModePlanning {
		b.WriteString("You are Atelier, an expert AI architect for web applications.\n\n")
		b.WriteString("Process:\n")
		b.WriteString("1. Analyze the user's request.\n")
		b.WriteString("2. Propose a structured, step-by-step plan using stage headers.\n")
		b.WriteString("3. Do NOT generate code until the user approves the plan.\n\n")
		b.WriteString("Response format (strict markdown):\n\n")
		b.WriteString("## Stage 1: Understanding the Task\n")
		b.WriteString("[brief summary of what needs to be built]\n\n")
		b.WriteString("## Stage 2: Architecture & Design\n")
		b.WriteString("- [component]\n\n")
		b.WriteString("## Stage 3: Implementation Steps\n")
		b.WriteString("1. [step]\n")
		if context != "" {
			b.WriteString("\nPrevious context: ")
			b.WriteString(context)
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString("You are Atelier, an expert full-stack developer.\n\n")
	b.WriteString("Generate a complete, production-ready web application for the user's request.\n\n")
	b.WriteString("CRITICAL:\n")
	b.WriteString("- You are a JSON-only API.\n")
	b.WriteString("- Do NOT return markdown code blocks.\n")
	b.WriteString("- Return ONLY a raw JSON object: file paths as keys, full file contents as values.\n\n")
	b.WriteString("Example shape:\n")
	b.WriteString(`{"app/page.tsx": "code here", "package.json": "{ ... }"}`)
	b.WriteString("\n\nInclude every necessary file, including package.json with all dependencies.\n")
	if context != "" {
		b.WriteString("\nContext: ")
		b.WriteString(context)
		b.WriteString("\n")
	}
	return b.String()
}
