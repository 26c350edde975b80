package mcpserver

// DocumentFormatContract describes how timeline documents are named and
// annotated so that LLM consumers can author or ingest them correctly.
const DocumentFormatContract = `# Historian Document Format

Each timeline event is one Markdown file in the documents directory.

## File name

` + "```" + `
YYYY-MM-DD.Title.md
` + "```" + `

- The date becomes the event's ` + "`created`" + ` field and orders the chronology.
- Everything between the date and ` + "`.md`" + ` is the title. Dots are allowed.
- Files that do not match are skipped during ingestion.
- The event id is ` + "`historian:YYYY-MM-DD:Title`" + `.

## Metadata block (optional)

` + "```" + `markdown
---
theme: Security
source: rfc
kind: note
era: modern
tags: [tls, http]
people: Alice, Bob
---

Body text.
` + "```" + `

1. The block must start at the first byte of the file.
2. It ends at the next ` + "`---`" + `; whitespace after it is dropped.
3. ` + "`tags`" + ` and ` + "`people`" + ` accept a YAML list or a comma-separated string.
4. Invalid YAML keeps the body but drops every classifier.

## Graph

- Events with the same date-ordered neighbour are joined by ` + "`NEXT`" + `.
- ` + "`theme`" + ` links the event to a topic node (` + "`THEME`" + `).
- Each tag links to a tag node (` + "`TAGGED`" + `).
- Each person links to a person node (` + "`MENTIONS`" + `).

## Ingesting via the ingest_event tool

Pass the same fields as arguments together with the admin credential.
Set ` + "`previousEventId`" + ` to chain the new event after an existing one; an
unknown predecessor is reported as a warning and the edge is dropped.
`
