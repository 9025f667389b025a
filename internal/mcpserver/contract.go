package mcpserver

// BookFormatContract describes a book folder for LLM consumers that inspect
// or reason about books.
const BookFormatContract = `# Quill Book Format

A book is a folder. It is recognized by a ` + "`book.json`" + ` file, or by the
three scaffold folders ` + "`chapters/`, `assets/` and `versions/`" + ` together.

## Layout

` + "```" + `
<book>/
  book.json              descriptor: title, author, chapterOrder, publishing data
  config.json            per-book assistant settings (optional)
  chapters/<id>.json     one file per chapter
  versions/<id>_v<N>.json  numbered chapter snapshots, N = 1, 2, 3...
  chats/book.json        book-wide conversation
  chats/<id>.json        conversation about one chapter
  assets/cover.<ext>     front cover (png, jpg, gif, webp)
  assets/back-cover.<ext>  back cover
  exports/               generated output, never read
` + "```" + `

## Rules

1. **Reading order** is ` + "`book.json` → `chapterOrder`" + `, an array of chapter ids.
   File listing order means nothing.
2. **Chapter ids** are usually two-digit numbers (` + "`01`, `02`" + `...). New chapters get
   one past the highest numeric id; ids are never renumbered after deletes or moves.
3. **Chapter content** is HTML (paragraphs, headings, emphasis). ` + "`read_chapter`" + `
   returns de-tagged text unless asked for html.
4. **lengthPreset** is one of ` + "`short`, `medium`, `long`" + `.
5. **Snapshots** are immutable. Restoring copies the newest snapshot's title, content
   and lengthPreset back onto the chapter. Deleting a chapter keeps its snapshots.
6. **Timestamps** are ISO-8601 UTC with milliseconds, e.g. ` + "`2025-01-20T09:30:00.000Z`" + `.
7. **Chat messages** have ` + "`id`, `role` (user|assistant), `scope` (book|chapter), `content`, `createdAt`" + `.

## Library

Opened books are listed in a process-wide ` + "`library.json`" + ` with a derived status:
` + "`recien_creado`" + ` (fewer chapters than the threshold, default 6), ` + "`avanzado`" + `
(at least the threshold) and ` + "`publicado`" + ` (published, overrides the count).

## Tools

- ` + "`save_snapshot`" + ` before large rewrites.
- ` + "`set_cover_image`" + ` accepts ` + "`data:image/...;base64,`" + ` URIs and http(s) URLs; the
  image format is verified from its bytes.
`
