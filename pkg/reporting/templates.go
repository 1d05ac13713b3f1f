/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template of the droidquery device report.
*/

package reporting

// reportTemplate renders a ReportData
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - droidquery report</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #3ddc84 0%, #073042 100%);
            min-height: 100vh;
            color: #333;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }

        .header, .stat-card, .chart-container, .section {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 15px;
            padding: 25px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
            margin-bottom: 30px;
        }

        .header { text-align: center; border-radius: 20px; }
        .header h1 { color: #4a5568; font-size: 2.5rem; margin-bottom: 10px; }
        .header p { color: #718096; }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
        }

        .stat-card h3 { color: #4a5568; font-size: 1.1rem; margin-bottom: 10px; }
        .stat-card .value { font-size: 1.8rem; font-weight: 700; color: #2d3748; word-break: break-all; }
        .stat-card .label { color: #718096; font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.5px; }

        .charts-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(450px, 1fr));
            gap: 30px;
        }

        .chart-container h3, .section h2 { color: #4a5568; margin-bottom: 20px; }
        .chart-wrapper { position: relative; height: 300px; }

        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #e2e8f0; }
        th { color: #4a5568; }
        tr.error td { color: #c53030; }
        pre { background: #f7fafc; padding: 10px; border-radius: 8px; overflow-x: auto; font-size: 0.8rem; }

        .footer { text-align: center; padding: 30px; color: rgba(255, 255, 255, 0.8); font-size: 0.9rem; }

        @media (max-width: 768px) {
            .container { padding: 10px; }
            .charts-grid { grid-template-columns: 1fr; }
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM"}} | Snapshot: <span id="snapshot-id">{{.Snapshot.ID}}</span>{{if .Version}} | Version: {{.Version}}{{end}}</p>
        </div>

        {{with .Snapshot}}
        <div class="stats-grid">
            <div class="stat-card">
                <h3>Device</h3>
                <div class="value">{{if .Device}}{{.Device.Model}}{{else}}unknown{{end}}</div>
                <div class="label">{{if .Device}}{{.Device.Serial}} | SDK {{.Device.SDK}}{{end}}</div>
            </div>
            <div class="stat-card">
                <h3>App</h3>
                <div class="value" id="app-package">{{if .Caller}}{{.Caller.PackageName}}{{else}}none{{end}}</div>
                <div class="label">{{if .Package}}{{.Package.VersionName}}{{end}}{{if .Debuggable}} | debuggable{{end}}</div>
            </div>
            <div class="stat-card">
                <h3>Foreground</h3>
                <div class="value">{{.Foreground.ShortString}}</div>
                <div class="label">{{if .InBackground}}app in background{{else}}app in foreground{{end}}</div>
            </div>
            <div class="stat-card">
                <h3>Packages</h3>
                <div class="value">{{len .Packages}}</div>
                <div class="label">{{len .Processes}} processes | storage {{if .StorageMounted}}mounted{{else}}unmounted{{end}} | {{if .HasBrowser}}browser{{else}}no browser{{end}}</div>
            </div>
        </div>
        {{end}}

        <div class="charts-grid">
            <div class="chart-container">
                <h3>{{.Charts.StateChart.Title}}</h3>
                <div class="chart-wrapper"><canvas id="stateChart"></canvas></div>
            </div>
            <div class="chart-container">
                <h3>{{.Charts.OpChart.Title}}</h3>
                <div class="chart-wrapper"><canvas id="opChart"></canvas></div>
            </div>
        </div>

        {{if .Snapshot.Errors}}
        <div class="section" id="snapshot-errors">
            <h2>Collection Errors</h2>
            <table>
                <tr><th>Operation</th><th>Error</th></tr>
                {{range .Snapshot.Errors}}<tr class="error"><td>{{.Op}}</td><td>{{.Error}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        <div class="section" id="processes">
            <h2>Processes</h2>
            <table>
                <tr><th>PID</th><th>Name</th><th>Importance</th></tr>
                {{range .Snapshot.Processes}}<tr><td>{{.PID}}</td><td>{{.Name}}</td><td>{{.Importance}}</td></tr>
                {{end}}
            </table>
        </div>

        {{if .Ops}}
        <div class="section" id="ops">
            <h2>Query History</h2>
            <table>
                <tr><th>Operation</th><th>Calls</th><th>Failures</th><th>Average</th></tr>
                {{range .Ops}}<tr><td>{{.Op}}</td><td>{{.Calls}}</td><td>{{.Failures}}</td><td>{{ms .AvgDurationMs}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        {{if .Crashes}}
        <div class="section" id="crashes">
            <h2>Crashes</h2>
            {{range .Crashes}}
            <div class="crash">
                <p><strong>{{.Type}}</strong> {{.Package}} at {{.Timestamp.Format "2006-01-02 15:04:05"}}: {{.Message}}</p>
                {{if .StackTrace}}<pre>{{range .StackTrace}}{{.}}
{{end}}</pre>{{end}}
            </div>
            {{end}}
        </div>
        {{end}}

        {{if .Errors}}
        <div class="section" id="errors">
            <h2>Stored Errors</h2>
            <table>
                <tr><th>Time</th><th>Operation</th><th>Error</th></tr>
                {{range .Errors}}<tr class="error"><td>{{.Timestamp.Format "15:04:05"}}</td><td>{{.Op}}</td><td>{{.ErrorMsg}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        <div class="section" id="packages">
            <h2>Installed Packages</h2>
            <table>
                <tr><th>Package</th><th>Label</th></tr>
                {{range .Snapshot.Packages}}<tr><td>{{.Name}}</td><td>{{.Label}}</td></tr>
                {{end}}
            </table>
        </div>

        <div class="footer">droidquery</div>
    </div>

    <script>
        const charts = {
            stateChart: {{.Charts.StateChart | json}},
            opChart: {{.Charts.OpChart | json}},
        };
        for (const [id, cfg] of Object.entries(charts)) {
            new Chart(document.getElementById(id), { type: cfg.type, data: cfg.data, options: cfg.options });
        }
    </script>
</body>
</html>`
