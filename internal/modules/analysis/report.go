package analysis

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteReport prints the console takeaways of a run: explained variance, leading loadings,
// the residual screen and the strongest correlations. Members of the first group of the
// universe are marked with "*".
func WriteReport(w io.Writer, res *Result, primaryGroup string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	p := &printer{w: tw}

	p.printf("Universe %s, run %s\n", res.Universe, res.RunID)
	p.printf("%d assets, %d periods (%s to %s), %s mode\n",
		len(res.Returns.Assets), res.Returns.Periods,
		res.Returns.Start.Format("2006-01-02"), res.Returns.End.Format("2006-01-02"), res.Config.Mode)
	for _, warning := range res.Warnings {
		p.printf("warning: %s\n", warning)
	}

	p.printf("\n=== Explained variance ===\n")
	p.printf("PC\tratio\tcumulative\t\n")
	cum := res.Components.Cumulative()
	for i, c := range res.ReportedComponents() {
		p.printf("%s\t%.3f\t%.3f\t\n", c.Label(), c.VarianceRatio, cum[i])
	}
	p.printf("PCA retains %d PCs to reach ~%.1f%% variance.\n", res.K, res.CumulativeVariance*100)

	p.printf("\n=== Loadings ===\n")
	comps := res.ReportedComponents()
	if len(comps) > 3 {
		comps = comps[:3]
	}
	header := []string{"asset"}
	for _, c := range comps {
		header = append(header, c.Label())
	}
	p.printf("%s\t\n", strings.Join(header, "\t"))
	for j, asset := range res.Components.Assets {
		label := asset
		if primaryGroup != "" && res.Groups[asset] == primaryGroup {
			label += "*"
		}
		row := []string{label}
		for _, c := range comps {
			row = append(row, fmt.Sprintf("%.3f", c.Loadings[j]))
		}
		p.printf("%s\t\n", strings.Join(row, "\t"))
	}
	if primaryGroup != "" {
		p.printf("* = %s names\n", primaryGroup)
	}

	latest := res.Latest
	p.printf("\n=== Residual z-scores (%d-day window, %s) ===\n", latest.Window, latest.Date.Format("2006-01-02"))
	p.printf("Top residual z-scores (potential shorts):\n")
	for _, e := range latest.Top(3) {
		p.printf("%s\t%+.2f\t\n", e.Asset, *e.ZScore)
	}
	p.printf("Bottom residual z-scores (potential longs):\n")
	for _, e := range latest.Bottom(3) {
		p.printf("%s\t%+.2f\t\n", e.Asset, *e.ZScore)
	}
	if undefined := len(latest.Entries) - latest.Defined(); undefined > 0 {
		p.printf("%d assets without a defined score\n", undefined)
	}

	p.printf("\n=== Top correlations ===\n")
	for _, pv := range res.Correlation.Top {
		p.printf("%s\t%s\t%.3f\t\n", pv.A, pv.B, pv.Correlation)
	}

	if len(res.Pairs) > 0 {
		p.printf("\n=== Pair correlations ===\n")
		p.printf("pair\tstatic\tlatest rolling\t\n")
		for _, pc := range res.Pairs {
			if pc.Error != "" {
				p.printf("%s\t%s\t\t\n", pc.Pair, pc.Error)
				continue
			}
			rolling := "n/a"
			if pc.Rolling != nil {
				if _, v, ok := pc.Rolling.Last(); ok {
					rolling = fmt.Sprintf("%.3f", v)
				}
			}
			p.printf("%s\t%.3f\t%s\t\n", pc.Pair, *pc.Static, rolling)
		}
	}

	if p.err != nil {
		return p.err
	}
	return tw.Flush()
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
