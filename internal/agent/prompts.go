package agent

import (
	"strings"
)

// QueryPrompt asks the model for a query answering question.
func QueryPrompt(dialect, schema, question string) string {
	var b strings.Builder
	b.WriteString("You are a SQL query generator. Given a natural language question, generate a SQL query that answers it.\n")
	if dialect != "" {
		b.WriteString("Write " + dialect + " SQL and reply with the query only, no explanation and no markdown.\n")
	}
	b.WriteString("Database schema: " + schema + "\n")
	b.WriteString("Question: " + question + "\n")
	b.WriteString("Generated SQL query:")
	return b.String()
}

// RepairPrompt carries the execution error of sql back to the model.
func RepairPrompt(execErr, schema, question, sql string) string {
	var b strings.Builder
	b.WriteString("The previous query failed with error: " + execErr + "\n")
	b.WriteString("Please analyze the error and generate a corrected SQL query.\n")
	b.WriteString("Database schema: " + schema + "\n")
	b.WriteString("Original question: " + question + "\n")
	b.WriteString("Failed query: " + sql + "\n")
	b.WriteString("Corrected SQL query:")
	return b.String()
}

// ExplainPrompt asks for a plain language description of sql.
func ExplainPrompt(sql string) string {
	return "Explain the SQL query in simple terms:\nQuery: " + sql + "\nExplanation:"
}

// CleanExplanation trims the completion and any leading "Explanation:" label.
func CleanExplanation(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len("explanation:") && strings.EqualFold(s[:len("explanation:")], "explanation:") {
		s = strings.TrimSpace(s[len("explanation:"):])
	}
	return s
}
