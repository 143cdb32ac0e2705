package report

import (
	"bufio"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jupierce/swift-coverage-report/pkg/coverage"
)

// maxListedRegions caps the uncovered regions listed per file.
const maxListedRegions = 10

// Options are the caller-supplied labels shown in the report header.
type Options struct {
	PackageName string
	Filter      string // display only; filtering already happened upstream
}

type fileView struct {
	coverage.FileCoverage
	Level coverage.Tier
	Shown []coverage.Region
	More  int
}

type categoryView struct {
	Name    string
	Summary coverage.Summary
	Files   []fileView
}

type tierButton struct {
	Level coverage.Tier
	Label string
	Count int
}

type pageData struct {
	PackageName string
	Filter      string
	Summary     coverage.Summary
	Categories  []categoryView
	Buttons     []tierButton
}

var tierLabels = map[coverage.Tier]string{
	coverage.TierPerfect:   "🎯 Perfect (100%)",
	coverage.TierExcellent: "✅ Excellent (95%+)",
	coverage.TierGood:      "👍 Good (85-95%)",
	coverage.TierFair:      "⚠️ Fair (70-85%)",
	coverage.TierPoor:      "🔴 Poor (<70%)",
}

var funcMap = template.FuncMap{
	"formatPct": func(pct float64) string {
		return fmt.Sprintf("%.1f%%", pct)
	},
	"barWidth": func(pct float64) string {
		return fmt.Sprintf("%.1f", pct)
	},
	"formatInt": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"overallClass": func(pct float64) string {
		if pct >= 95 {
			return "high"
		} else if pct >= 85 {
			return "medium"
		}
		return "low"
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportHTML))

// Render returns the complete report document.
func Render(files map[string]coverage.FileCoverage, opts Options) (string, error) {
	var buf strings.Builder
	if err := Write(&buf, files, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write renders the report to w. Identical input always yields identical
// bytes.
func Write(w io.Writer, files map[string]coverage.FileCoverage, opts Options) error {
	if err := reportTemplate.Execute(w, buildPage(files, opts)); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

// WriteFile renders the report to path, replacing any existing file.
func WriteFile(path string, files map[string]coverage.FileCoverage, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	w := bufio.NewWriterSize(f, 256*1024)
	if err := Write(w, files, opts); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write output file: %w", err)
	}
	return f.Close()
}

func buildPage(files map[string]coverage.FileCoverage, opts Options) pageData {
	summary := coverage.Summarize(coverage.Sorted(files))

	page := pageData{
		PackageName: opts.PackageName,
		Filter:      opts.Filter,
		Summary:     summary,
	}

	for _, tier := range coverage.Tiers {
		page.Buttons = append(page.Buttons, tierButton{
			Level: tier,
			Label: tierLabels[tier],
			Count: summary.Tiers.Count(tier),
		})
	}

	for _, cat := range coverage.Categories(files) {
		view := categoryView{Name: cat.Name, Summary: cat.Summary}
		for _, f := range cat.Files {
			view.Files = append(view.Files, newFileView(f))
		}
		page.Categories = append(page.Categories, view)
	}

	return page
}

func newFileView(f coverage.FileCoverage) fileView {
	view := fileView{FileCoverage: f, Level: f.Tier(), Shown: f.Uncovered}
	if len(f.Uncovered) > maxListedRegions {
		view.Shown = f.Uncovered[:maxListedRegions]
		view.More = len(f.Uncovered) - maxListedRegions
	}
	return view
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Code Coverage Report - {{.PackageName}}</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: #f5f5f7;
            color: #1d1d1f;
            line-height: 1.6;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
        }

        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 40px 20px;
            margin-bottom: 30px;
            border-radius: 12px;
            box-shadow: 0 4px 12px rgba(0,0,0,0.15);
        }

        h1 {
            font-size: 2.5em;
            margin-bottom: 10px;
            font-weight: 600;
        }

        .subtitle {
            font-size: 1.1em;
            opacity: 0.9;
        }

        /* Summary cards */
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 30px;
        }

        .stat-card {
            background: white;
            padding: 25px;
            border-radius: 12px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            transition: transform 0.2s;
        }

        .stat-card:hover {
            transform: translateY(-2px);
            box-shadow: 0 4px 12px rgba(0,0,0,0.15);
        }

        .stat-label {
            font-size: 0.9em;
            color: #666;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 8px;
        }

        .stat-value {
            font-size: 2.5em;
            font-weight: 700;
            margin-bottom: 8px;
        }

        .stat-value.high { color: #34c759; }
        .stat-value.medium { color: #ffd60a; }
        .stat-value.low { color: #ff9f0a; }

        .stat-detail {
            font-size: 0.9em;
            color: #666;
        }

        /* Tier filter */
        .filter-buttons {
            display: flex;
            gap: 10px;
            margin-bottom: 20px;
            flex-wrap: wrap;
        }

        .filter-btn {
            padding: 10px 20px;
            border: none;
            border-radius: 20px;
            background: white;
            color: #667eea;
            font-weight: 600;
            cursor: pointer;
            transition: all 0.2s;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }

        .filter-btn:hover,
        .filter-btn.active {
            background: #667eea;
            color: white;
        }

        .filter-btn .count {
            margin-left: 6px;
            padding: 1px 7px;
            border-radius: 8px;
            background: rgba(102, 126, 234, 0.15);
            font-size: 0.85em;
        }

        .filter-btn.active .count,
        .filter-btn:hover .count {
            background: rgba(255,255,255,0.3);
        }

        /* Categories */
        .category-section {
            background: white;
            border-radius: 12px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            margin-bottom: 20px;
            overflow: hidden;
        }

        .category-header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 20px;
            cursor: pointer;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }

        .category-header:hover {
            background: linear-gradient(135deg, #5568d3 0%, #654b8f 100%);
        }

        .category-name {
            font-size: 1.3em;
            font-weight: 600;
        }

        .category-stats {
            font-size: 0.9em;
            opacity: 0.9;
        }

        .category-content {
            display: none;
            padding: 20px;
        }

        .category-content.active {
            display: block;
        }

        /* Files */
        .file-item {
            border-left: 4px solid #667eea;
            padding: 15px;
            margin-bottom: 15px;
            background: #f9f9fb;
            border-radius: 6px;
        }

        .file-item.perfect { border-left-color: #34c759; }
        .file-item.excellent { border-left-color: #30d158; }
        .file-item.good { border-left-color: #ffd60a; }
        .file-item.fair { border-left-color: #ff9f0a; }
        .file-item.poor { border-left-color: #ff3b30; }

        .file-name {
            font-size: 1.1em;
            font-weight: 600;
            margin-bottom: 5px;
            display: flex;
            align-items: center;
            gap: 10px;
        }

        .file-path {
            font-size: 0.85em;
            color: #666;
            font-family: 'SFMono-Regular', Menlo, Monaco, 'Courier New', monospace;
            margin-bottom: 10px;
        }

        .coverage-badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 20px;
            font-size: 0.85em;
            font-weight: 600;
            color: white;
        }

        .coverage-badge.perfect { background: #34c759; }
        .coverage-badge.excellent { background: #30d158; }
        .coverage-badge.good { background: #ffd60a; color: #000; }
        .coverage-badge.fair { background: #ff9f0a; }
        .coverage-badge.poor { background: #ff3b30; }

        .coverage-details {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 10px;
            margin-top: 10px;
        }

        .coverage-metric {
            font-size: 0.9em;
            color: #666;
        }

        .coverage-bar {
            height: 8px;
            background: #e5e5e7;
            border-radius: 4px;
            overflow: hidden;
            margin-top: 5px;
        }

        .coverage-bar-fill {
            height: 100%;
            transition: width 0.3s ease;
        }

        .coverage-bar-fill.perfect { background: #34c759; }
        .coverage-bar-fill.excellent { background: #30d158; }
        .coverage-bar-fill.good { background: #ffd60a; }
        .coverage-bar-fill.fair { background: #ff9f0a; }
        .coverage-bar-fill.poor { background: #ff3b30; }

        /* Uncovered regions */
        .uncovered-regions {
            margin-top: 10px;
            padding: 10px;
            background: #fff3cd;
            border-left: 3px solid #ffc107;
            border-radius: 4px;
        }

        .uncovered-title {
            font-weight: 600;
            margin-bottom: 5px;
            color: #856404;
        }

        .uncovered-list {
            font-size: 0.9em;
            color: #856404;
            font-family: 'SFMono-Regular', Menlo, Monaco, 'Courier New', monospace;
        }

        @media (max-width: 768px) {
            .stats-grid {
                grid-template-columns: repeat(2, 1fr);
            }

            .category-header {
                flex-direction: column;
                align-items: flex-start;
            }
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>📊 Code Coverage Report</h1>
            <div class="subtitle">{{.PackageName}}{{if .Filter}} (Filtered: {{.Filter}}){{end}}</div>
        </header>

        <div class="stats-grid">
            <div class="stat-card">
                <div class="stat-label">Overall Coverage</div>
                <div class="stat-value {{overallClass .Summary.Overall}}">{{formatPct .Summary.Overall}}</div>
                <div class="stat-detail">Combined line &amp; branch coverage</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Line Coverage</div>
                <div class="stat-value">{{formatPct .Summary.Lines.Percentage}}</div>
                <div class="stat-detail">{{formatInt .Summary.Lines.Covered}}/{{formatInt .Summary.Lines.Total}} lines</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Branch Coverage</div>
                <div class="stat-value">{{formatPct .Summary.Branches.Percentage}}</div>
                <div class="stat-detail">{{formatInt .Summary.Branches.Covered}}/{{formatInt .Summary.Branches.Total}} branches</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Files</div>
                <div class="stat-value">{{formatInt .Summary.Files}}</div>
                <div class="stat-detail">Total analyzed</div>
            </div>
        </div>

        <div class="filter-buttons">
            <button class="filter-btn active" data-level="all">All Files<span class="count">{{.Summary.Files}}</span></button>
            {{- range .Buttons}}
            <button class="filter-btn" data-level="{{.Level}}">{{.Label}}<span class="count">{{.Count}}</span></button>
            {{- end}}
        </div>
{{range .Categories}}
        <div class="category-section">
            <div class="category-header" onclick="toggleCategory(this)">
                <div class="category-name">{{.Name}}</div>
                <div class="category-stats">{{.Summary.Files}} files | {{formatPct .Summary.Overall}} coverage</div>
            </div>
            <div class="category-content active">
{{- range .Files}}
                <div class="file-item {{.Level}}" data-level="{{.Level}}">
                    <div class="file-name">
                        {{.Name}}
                        <span class="coverage-badge {{.Level}}">{{formatPct .Overall}}</span>
                    </div>
                    <div class="file-path">{{.RelativePath}}</div>
                    <div class="coverage-details">
                        <div>
                            <div class="coverage-metric">
                                Line Coverage: {{.Lines.Covered}}/{{.Lines.Total}} ({{formatPct .Lines.Percentage}})
                            </div>
                            <div class="coverage-bar">
                                <div class="coverage-bar-fill {{.Level}}" style="width: {{barWidth .Lines.Percentage}}%"></div>
                            </div>
                        </div>
                        <div>
                            <div class="coverage-metric">
                                Branch Coverage: {{.Branches.Covered}}/{{.Branches.Total}} ({{formatPct .Branches.Percentage}})
                            </div>
                            <div class="coverage-bar">
                                <div class="coverage-bar-fill {{.Level}}" style="width: {{barWidth .Branches.Percentage}}%"></div>
                            </div>
                        </div>
                    </div>
                    {{- if .Uncovered}}
                    <div class="uncovered-regions">
                        <div class="uncovered-title">⚠️ {{len .Uncovered}} Uncovered Region(s):</div>
                        <div class="uncovered-list">
                            {{- range .Shown}}Line {{.Line}}, Col {{.Column}}<br>{{end}}
                            {{- if .More}}... and {{.More}} more{{end}}
                        </div>
                    </div>
                    {{- end}}
                </div>
{{- end}}
            </div>
        </div>
{{end}}
    </div>

    <script>
        function toggleCategory(header) {
            header.nextElementSibling.classList.toggle('active');
        }

        function filterByLevel(level, button) {
            document.querySelectorAll('.filter-btn').forEach(btn => {
                btn.classList.remove('active');
            });
            button.classList.add('active');

            document.querySelectorAll('.file-item').forEach(item => {
                if (level === 'all' || item.dataset.level === level) {
                    item.style.display = 'block';
                } else {
                    item.style.display = 'none';
                }
            });

            // Hide categories left with nothing to show under a tier filter
            document.querySelectorAll('.category-section').forEach(section => {
                const hasVisibleItems = level === 'all' ||
                    Array.from(section.querySelectorAll('.file-item')).some(item =>
                        item.dataset.level === level
                    );
                section.style.display = hasVisibleItems ? 'block' : 'none';
            });
        }

        document.querySelectorAll('.filter-btn').forEach(btn => {
            btn.addEventListener('click', () => filterByLevel(btn.dataset.level, btn));
        });
    </script>
</body>
</html>
`
