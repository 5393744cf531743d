// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"html/template"
	"net/http"
	"slices"
	"time"

	"github.com/bureau-foundation/bureau-ci/lib/ledger"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

var viewFunctions = template.FuncMap{
	"timestamp": func(t time.Time) string { return t.UTC().Format(timestampLayout) },
	"status": func(record ledger.Record) string {
		if record.Succeeded() {
			return "Success"
		}
		return "Failure"
	},
}

var views = template.Must(template.New("views").Funcs(viewFunctions).Parse(`
{{define "style"}}<style>
  body {font-family: sans-serif; margin: 2em;}
  table {border-collapse: collapse; width: 100%;}
  th, td {padding: 8px; text-align: left; border-bottom: 1px solid #ddd;}
  tr:hover {background-color: #f5f5f5;}
  pre {background: #f6f8fa; padding: 1em; overflow-x: auto;}
  .success {color: #2e7d32;}
  .failure {color: #c62828;}
  .notification {border: 1px solid #ccc; padding: 10px; margin: 10px 0;}
</style>{{end}}

{{define "list"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="5">
  <title>CI Server - All Builds</title>
  {{template "style"}}
</head>
<body>
<h1>CI Build History</h1>
{{if .}}<table>
  <thead>
    <tr><th>ID</th><th>Repository</th><th>Commit SHA</th><th>Branch</th><th>Status</th><th>Date</th></tr>
  </thead>
  <tbody>
{{range .}}    <tr class="{{.Outcome}}">
      <td><a href="/details?id={{.ID}}">{{.ID}}</a></td>
      <td>{{.RepoName}}</td>
      <td><code>{{.CommitSHA}}</code></td>
      <td>{{.Branch}}</td>
      <td>{{status .}}</td>
      <td>{{timestamp .CreatedAt}}</td>
    </tr>
{{end}}  </tbody>
</table>{{else}}<p>No builds yet.</p>{{end}}
</body>
</html>
{{end}}

{{define "detail"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Build Detail</title>
  {{template "style"}}
</head>
<body>
{{if .Found}}{{with .Record}}<h1>Build Detail for ID: {{.ID}}</h1>
<p><strong>Repository:</strong> {{.RepoName}}</p>
<p><strong>Commit SHA:</strong> <code>{{.CommitSHA}}</code></p>
<p><strong>Branch:</strong> {{.Branch}}</p>
<p><strong>Status:</strong> <span class="{{.Outcome}}">{{status .}}</span></p>
<p><strong>Date:</strong> {{timestamp .CreatedAt}}</p>
<p><strong>Details:</strong></p>
<pre>{{.Detail}}</pre>
{{end}}{{else}}<p>Build status not found for id: {{.ID}}</p>
{{end}}<p><a href="/builds">Back to build list</a></p>
</body>
</html>
{{end}}

{{define "notification"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="2">
  <title>Build Notification</title>
  {{template "style"}}
</head>
<body>
<h1>Latest Build Notification</h1>
{{if .Found}}{{with .Record}}<div class="notification {{.Outcome}}">
<p><strong>Repository:</strong> <a href="/details?id={{.ID}}">{{.RepoName}}</a></p>
<p><strong>Commit SHA:</strong> <code>{{.CommitSHA}}</code></p>
<p><strong>Branch:</strong> {{.Branch}}</p>
<p><strong>Status:</strong> {{status .}}</p>
<p><strong>Details:</strong></p>
<pre>{{.Detail}}</pre>
</div>
{{end}}{{else}}<p>No build notifications yet for this session.</p>
{{end}}</body>
</html>
{{end}}
`))

// recordView is the data of the detail and notification pages.
type recordView struct {
	ID     string
	Found  bool
	Record ledger.Record
}

// handleBuildList renders every build, newest first.
func (s *Server) handleBuildList(writer http.ResponseWriter, _ *http.Request) {
	records := s.ledger.List()
	slices.Reverse(records)
	s.render(writer, http.StatusOK, "list", records)
}

// handleBuildDetail renders one build. An unknown id is a 404 page.
func (s *Server) handleBuildDetail(writer http.ResponseWriter, request *http.Request) {
	id := request.URL.Query().Get("id")
	record, found := s.ledger.Get(id)
	status := http.StatusOK
	if !found {
		status = http.StatusNotFound
	}
	s.render(writer, status, "detail", recordView{ID: id, Found: found, Record: record})
}

// handleNotifications renders the newest build of this process's
// lifetime. Builds loaded from an earlier run are not notifications.
func (s *Server) handleNotifications(writer http.ResponseWriter, _ *http.Request) {
	record, found := s.ledger.LatestSinceOpen()
	s.render(writer, http.StatusOK, "notification", recordView{ID: record.ID, Found: found, Record: record})
}

// render executes a template into a buffer first, so a template error
// becomes a clean 500 instead of a truncated page.
func (s *Server) render(writer http.ResponseWriter, status int, name string, data any) {
	var page bytes.Buffer
	if err := views.ExecuteTemplate(&page, name, data); err != nil {
		s.logger.Error("rendering page failed", "template", name, "error", err)
		http.Error(writer, "Unexpected error occurred", http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(status)
	writer.Write(page.Bytes())
}
