package mcpserver

// ArticleFormatContract describes the collection file format that LLM
// consumers should follow when editing articles.
const ArticleFormatContract = `# Newsdesk Article Format

A collection file is a UTF-8 JSON array of article objects, written with
two-space indentation and a trailing newline. Anything other than an array of
objects is rejected.

## Fields

| field            | type     | notes                                              |
|------------------|----------|----------------------------------------------------|
| id               | string   | 12 hex chars, sha1 of "title|image", set once      |
| title            | string   | a blank title on save keeps the previous one       |
| description_full | string   | legacy files may use description_text              |
| image            | string   | URL or repository path of the cover image          |
| categories       | string[] | entered comma separated, blanks dropped            |
| time             | string   | free-form; legacy keys published, date, pubDate    |
| youtube_url      | string   | optional                                           |
| html_content     | string   | article body as HTML                               |
| other_images     | string[] | entered one per line; legacy key images_full       |
| created_at       | string   | ISO-8601 UTC with milliseconds, set once           |
| updated_at       | string   | refreshed on every save, never before created_at   |

## Rules

1. Edits apply to the working collection only. Nothing reaches the repository
   until commit_collection succeeds.
2. A commit fails with a conflict when someone else changed the file since it
   was loaded. Reload, reapply the edits, and commit again.
3. Upload images with upload_image. Images are converted to JPEG and stored at
   ` + "`" + `<folder>/<year>/<month>/<slug>-<hash>.jpg` + "`" + `; put the returned url in
   ` + "`" + `image` + "`" + ` or ` + "`" + `other_images` + "`" + `.

## Example

` + "```" + `json
[
  {
    "id": "3f1c9b0a7d2e",
    "title": "Match report",
    "description_full": "Short summary.",
    "image": "https://cdn.example.com/images/2025/03/match-report-0c1d2e3f4a5b.jpg",
    "categories": ["sport", "football"],
    "time": "2025-03-01 18:30",
    "youtube_url": "",
    "html_content": "<p>Body</p>",
    "other_images": [],
    "created_at": "2025-03-01T18:31:02.512Z",
    "updated_at": "2025-03-01T18:40:11.004Z"
  }
]
` + "```" + `
`
