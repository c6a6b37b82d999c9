// Package mailstore turns a directory of plain-text email threads into
// ordered message records.
//
// Every *.txt file in the input directory is one thread. A thread holds one
// or more messages separated by a blank line followed by a From, Subject or
// Date header. Messages are parsed, sorted chronologically (unknown dates
// last) and numbered 0..n-1 within their thread. GroupByProject then buckets
// messages into projects using the subject line.
//
// The optional Colleagues.txt file in the same directory maps addresses to
// names and roles; it is never parsed as a thread.
package mailstore
