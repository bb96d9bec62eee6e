package mcpserver

// TodoFormatContract describes the checklist line grammar that LLM
// consumers should follow when writing TODO items into notes.
const TodoFormatContract = `# Memento TODO Format Contract

A TODO is a single Markdown checklist line inside any note.

## Structure

` + "```" + `text
<indent>- [ ] <text> [#tag]* [project:NAME] [due:YYYY-MM-DD] [priority:H|M|L] [end_time:YYYY-MM-DD]
` + "```" + `

## Rules

1. **Checkbox.** ` + "`" + `- [ ]` + "`" + ` is open, ` + "`" + `- [x]` + "`" + ` (or ` + "`" + `- [X]` + "`" + `) is done. Exactly one space
   follows the dash and at least one follows the closing bracket.
2. **Indent** is leading spaces; a tab counts as four columns. Nested items
   are independent TODOs.
3. **Tags** are ` + "`" + `#word` + "`" + ` tokens; ` + "`" + `/` + "`" + ` builds a hierarchy (` + "`" + `#work/urgent` + "`" + `).
4. **Attributes** are ` + "`" + `key:value` + "`" + ` tokens with no spaces. Only the first
   occurrence of each key counts.
5. **Dates** use ` + "`" + `YYYY-MM-DD` + "`" + `. ` + "`" + `end_time` + "`" + ` is written when an item is completed
   through ` + "`" + `toggle_todo` + "`" + ` and removed again when it is reopened.
6. **Priority** is one of ` + "`" + `H` + "`" + `, ` + "`" + `M` + "`" + `, ` + "`" + `L` + "`" + `.
7. **Identity.** A TODO is addressed by its note path and 1-based line number.
   Re-list TODOs after editing a note; line numbers shift when lines are
   inserted above.

## Example

` + "```" + `markdown
- [ ] Draft the quarterly plan #work/q1 project:planning due:2025-02-01 priority:H
  - [x] Collect last quarter numbers #work end_time:2025-01-14
- [ ] Buy milk #errand
` + "```" + `
`
