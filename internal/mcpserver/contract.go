package mcpserver

// MemoFormatContract describes the textual markers memolog recognises in
// memo content. LLM clients should follow it when writing memos.
const MemoFormatContract = `# memolog Memo Format Contract

A memo is free Markdown text. Its behaviour comes only from the markers
below; there is no separate type field. Ids look like ` + "`" + `memos/<uuid>` + "`" + `.

## Goal

A line of the form

    -[0] <title> (<current>/<target>)

makes the memo a goal. Only the first such line counts. Use the
` + "`" + `complete_goal` + "`" + ` tool to advance it; never edit the numbers by hand.

## Check-in

A memo containing ` + "`" + `-[*]` + "`" + ` is a habit. The text after the marker on the
first such line is its title, e.g. ` + "`" + `-[*] Morning run` + "`" + `. Record a
check-in with the ` + "`" + `check_in` + "`" + ` tool.

## Schedule

A memo containing ` + "`" + `{}` + "`" + ` and a datetime ` + "`" + `YYYY/MM/DD HH:mm[:ss]` + "`" + ` is a
schedule, e.g. ` + "`" + `{} 2025/08/06 15:00 Dentist` + "`" + `.

## Tasks

Lines like ` + "`" + `- [ ] text` + "`" + ` or ` + "`" + `- [x] text` + "`" + ` are tasks. The first non-indented
task is the main task; indented tasks below it are subtasks. ` + "`" + `!` + "`" + `, ` + "`" + `!!` + "`" + `
or ` + "`" + `!!!` + "`" + ` right after the checkbox sets low, medium or high priority.

## References and tags

- ` + "`" + `@memos/<uuid>` + "`" + ` or ` + "`" + `[[memos/<uuid>]]` + "`" + ` references another memo.
- ` + "`" + `#tag` + "`" + ` tags a memo.

## Completion records

Check-ins and goal completions are stored as ordinary memos that
reference the parent memo. Do not create them by hand; they are the
source of truth for progress and streaks.
`
