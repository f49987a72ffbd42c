// primegate — governance decision core for a regulated banking
// assistant. Every agent action passes through safety classification,
// LLM judgment, role-based permission checks and a hash-chained audit
// trail; low-confidence or risky requests escalate to human review.
package main

import "github.com/primegate/primegate/internal/cli"

func main() {
	cli.Execute()
}
