package web

import (
	"html/template"

	"github.com/mrsinham/pixieveil/internal/storage"
)

type dashboardData struct {
	Version string
	Stats   storage.Snapshot
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="10">
<title>PixieVeil</title>
<style>
body { font-family: monospace; margin: 2em; background: #101418; color: #d0d8e0; }
h1 { font-size: 1.3em; }
h1 span { color: #6a7684; font-size: 0.7em; }
table { border-collapse: collapse; margin-bottom: 1.5em; }
caption { text-align: left; font-weight: bold; padding: 0.3em 0; color: #8fb4d8; }
td { border: 1px solid #2a323c; padding: 0.3em 1em; }
td:last-child { text-align: right; }
</style>
</head>
<body>
<h1>PixieVeil <span>{{.Version}}</span></h1>

<table>
<caption>Studies</caption>
<tr><td>active</td><td>{{.Stats.Studies.Active}}</td></tr>
<tr><td>completed</td><td>{{.Stats.Studies.Completed}}</td></tr>
</table>

<table>
<caption>Reception</caption>
<tr><td>images</td><td>{{.Stats.Reception.Images}}</td></tr>
<tr><td>bytes</td><td>{{.Stats.Reception.Bytes}}</td></tr>
</table>

<table>
<caption>Processing</caption>
<tr><td>images</td><td>{{.Stats.Processing.Images}}</td></tr>
<tr><td>avg ms</td><td>{{printf "%.2f" .Stats.Processing.AvgMS}}</td></tr>
<tr><td>validation errors</td><td>{{.Stats.Processing.Errors.Validation}}</td></tr>
<tr><td>anonymization errors</td><td>{{.Stats.Processing.Errors.Anonymization}}</td></tr>
<tr><td>storage errors</td><td>{{.Stats.Processing.Errors.Storage}}</td></tr>
<tr><td>filtered</td><td>{{.Stats.Filter.Dropped}}</td></tr>
</table>

<table>
<caption>Archive</caption>
<tr><td>studies</td><td>{{.Stats.Archive.Studies}}</td></tr>
<tr><td>images</td><td>{{.Stats.Archive.Images}}</td></tr>
<tr><td>errors</td><td>{{.Stats.Archive.Errors}}</td></tr>
</table>

<table>
<caption>Remote storage</caption>
<tr><td>studies</td><td>{{.Stats.RemoteStorage.Studies}}</td></tr>
<tr><td>images</td><td>{{.Stats.RemoteStorage.Images}}</td></tr>
<tr><td>bytes</td><td>{{.Stats.RemoteStorage.Bytes}}</td></tr>
<tr><td>errors</td><td>{{.Stats.RemoteStorage.Errors}}</td></tr>
</table>

<table>
<caption>Errors</caption>
<tr><td>total</td><td>{{.Stats.Errors.Total}}</td></tr>
</table>
</body>
</html>
`))
