package mcpserver

// NoteFormatContract describes the daily note layout that LLM consumers
// should keep when writing notes.
const NoteFormatContract = `# daylog Note Format Contract

Each day has at most one note at ` + "`" + `YEAR/MM/DD.md` + "`" + ` (for example ` + "`" + `2024/01/05.md` + "`" + `).
Older repositories may hold ` + "`" + `YEAR/MM/MM-DD.md` + "`" + `; such a file is read and written in place.

## Structure

` + "```" + `markdown
# 2024-01-05

## 待办事项

- [ ] open task
  - [ ] sub-step (belongs to the task above)
- [x] finished task

## 笔记

Free-form Markdown.

## 附件

![receipt](assets/receipt.png)
` + "```" + `

## Rules

1. **Checkboxes** are ` + "`" + `- [ ] text` + "`" + ` (open) and ` + "`" + `- [x] text` + "`" + ` (done). Every checkbox in
   the note counts toward the day's statistics, indented ones included.
2. **To-do section.** Only top-level open items under ` + "`" + `## 待办事项` + "`" + ` are carried over as
   past tasks on later days. Keep the heading text unchanged.
3. **Indentation** marks sub-items. Deleting a past task removes its indented children.
4. **Encoding** is UTF-8 with a trailing newline.
5. **Future days** may be written but do not count toward statistics until they arrive.

## Assets

- Upload via the ` + "`" + `upload_asset` + "`" + ` tool with the note's year and month. It returns a
  ` + "`" + `markdown` + "`" + ` field ready to paste into the note body.
- Assets live in ` + "`" + `YEAR/MM/assets/` + "`" + ` next to the notes of that month and are referenced
  relatively: ` + "`" + `![description](assets/filename.png)` + "`" + `.
- Supported formats: png, jpg, gif, webp, svg, pdf.
`
