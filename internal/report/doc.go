// Package report renders analysis results: the Markdown health report, a
// compact terminal summary and the debug metrics file.
//
// Every flag in the report is shown with the verbatim snippet that
// triggered it. Resolved flags also carry the snippet that closed them.
package report
