package render

import (
	"fmt"
	"strconv"
	"strings"

	"weekcal/internal/config"
	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

// Placeholder replaces the chart when a pass yields no bars.
const Placeholder = "No events to display"

// LegendTitle heads the legend.
const LegendTitle = "Calendars"

const uncatalogedFill = "#999999"

// Options control chart geometry and labels.
type Options struct {
	Title     string
	DayLabels []string
	HourMin   int
	HourMax   int

	Width  int
	Height int

	MarginLeft   int
	MarginRight  int
	MarginTop    int
	MarginBottom int

	Palette schedule.Palette
}

// DefaultOptions returns the standard 1100x560 chart.
func DefaultOptions() Options {
	return Options{
		Title:        "Weekly schedule",
		DayLabels:    []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		HourMin:      7,
		HourMax:      20,
		Width:        1100,
		Height:       560,
		MarginLeft:   70,
		MarginRight:  210,
		MarginTop:    56,
		MarginBottom: 56,
		Palette:      schedule.Tab10,
	}
}

// OptionsFromConfig applies the render settings of cfg to DefaultOptions.
func OptionsFromConfig(cfg *config.Config) Options {
	o := DefaultOptions()
	if cfg == nil {
		return o
	}
	o.Title = cfg.Title
	if len(cfg.DayLabels) == schedule.GridDays {
		o.DayLabels = cfg.DayLabels
	}
	o.HourMin, o.HourMax = cfg.HourMin, cfg.HourMax
	return o
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.MarginLeft <= 0 && o.MarginRight <= 0 && o.MarginTop <= 0 && o.MarginBottom <= 0 {
		o.MarginLeft, o.MarginRight = def.MarginLeft, def.MarginRight
		o.MarginTop, o.MarginBottom = def.MarginTop, def.MarginBottom
	}
	if len(o.DayLabels) != schedule.GridDays {
		o.DayLabels = def.DayLabels
	}
	if o.HourMax <= o.HourMin {
		o.HourMin, o.HourMax = def.HourMin, def.HourMax
	}
	if o.Palette.Len() == 0 {
		o.Palette = def.Palette
	}
	return o
}

// chart maps layout coordinates to pixels. The hour axis spans
// [HourMin, HourMax+1] so bars starting in the last labelled hour stay visible.
type chart struct {
	o            Options
	plotW, plotH float64
}

func (c chart) x(hour float64) float64 {
	span := float64(c.o.HourMax + 1 - c.o.HourMin)
	return float64(c.o.MarginLeft) + (hour-float64(c.o.HourMin))/span*c.plotW
}

// y maps a weekday coordinate; Monday is the top row.
func (c chart) y(v float64) float64 {
	return float64(c.o.MarginTop) + (v+0.5)*c.rowPx()
}

func (c chart) rowPx() float64 { return c.plotH / schedule.GridDays }

// SVG draws res as a standalone SVG document.
func SVG(res schedule.Result, cat model.SourceCatalog, opts Options) string {
	o := opts.normalized()
	c := chart{
		o:     o,
		plotW: float64(o.Width - o.MarginLeft - o.MarginRight),
		plotH: float64(o.Height - o.MarginTop - o.MarginBottom),
	}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<svg class="schedule" width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">`+"\n",
		o.Width, o.Height, o.Width, o.Height)
	svg.WriteString(`<style>
.title { font: bold 18px sans-serif; fill: #222; }
.axis { font: 12px sans-serif; fill: #444; }
.legend { font: 12px sans-serif; fill: #222; }
.placeholder { font: 16px sans-serif; fill: #666; }
.grid { stroke: #bbb; stroke-width: 1; stroke-dasharray: 4 3; }
.bar:hover { stroke: #000; stroke-width: 1.5; }
</style>
`)
	svg.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>` + "\n")
	fmt.Fprintf(&svg, `<text class="title" x="%s" y="%d" text-anchor="middle">%s</text>`+"\n",
		px(float64(o.MarginLeft)+c.plotW/2), o.MarginTop/2+6, escapeXML(o.Title))

	drawAxes(&svg, c)

	if res.Empty() {
		reason := ""
		if res.Reason != nil {
			reason = res.Reason.Error()
		}
		fmt.Fprintf(&svg, `<text class="placeholder" x="%s" y="%s" text-anchor="middle" data-reason="%s">%s</text>`+"\n",
			px(float64(o.MarginLeft)+c.plotW/2), px(float64(o.MarginTop)+c.plotH/2),
			escapeXML(reason), Placeholder)
		svg.WriteString("</svg>\n")
		return svg.String()
	}

	fmt.Fprintf(&svg, `<clipPath id="plot"><rect x="%d" y="%d" width="%s" height="%s"/></clipPath>`+"\n",
		o.MarginLeft, o.MarginTop, px(c.plotW), px(c.plotH))
	svg.WriteString(`<g clip-path="url(#plot)">` + "\n")
	for _, b := range res.Bars {
		drawBar(&svg, c, b)
	}
	svg.WriteString("</g>\n")

	drawLegend(&svg, c, res.Bars, cat)
	svg.WriteString("</svg>\n")
	return svg.String()
}

func drawAxes(svg *strings.Builder, c chart) {
	o := c.o
	top, bottom := float64(o.MarginTop), float64(o.MarginTop)+c.plotH
	left, right := float64(o.MarginLeft), float64(o.MarginLeft)+c.plotW

	fmt.Fprintf(svg, `<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="#444"/>`+"\n",
		px(left), px(top), px(c.plotW), px(c.plotH))

	for h := o.HourMin; h <= o.HourMax; h++ {
		x := px(c.x(float64(h)))
		fmt.Fprintf(svg, `<line class="grid" x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n", x, px(top), x, px(bottom))
		fmt.Fprintf(svg, `<text class="axis" x="%s" y="%s" text-anchor="middle">%d</text>`+"\n", x, px(bottom+16), h)
	}
	fmt.Fprintf(svg, `<text class="axis" x="%s" y="%s" text-anchor="middle">Hour</text>`+"\n",
		px(left+c.plotW/2), px(bottom+36))

	for i := 0; i < schedule.GridDays-1; i++ {
		y := px(c.y(float64(i) + 0.5))
		fmt.Fprintf(svg, `<line class="grid" x1="%s" y1="%s" x2="%s" y2="%s"/>`+"\n", px(left), y, px(right), y)
	}
	for i, label := range o.DayLabels {
		fmt.Fprintf(svg, `<text class="axis" x="%s" y="%s" text-anchor="end" dominant-baseline="middle">%s</text>`+"\n",
			px(left-8), px(c.y(float64(i))), escapeXML(label))
	}
}

func drawBar(svg *strings.Builder, c chart, b model.LayoutBar) {
	fill := uncatalogedFill
	if b.ColorIndex != schedule.UncatalogedColor {
		fill = c.o.Palette.Hex(b.ColorIndex)
	}
	x := c.x(b.StartHourFraction)
	w := c.x(b.StartHourFraction+b.DurationHours) - x
	y := c.y(b.RowStart)
	h := b.RowHeight * c.rowPx()

	fmt.Fprintf(svg, `<rect class="bar" x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="%s" data-source="%s">`,
		px(x), px(y), px(w), px(h), fill, strconv.FormatFloat(b.Alpha, 'f', 3, 64), escapeXML(b.SourceID))
	fmt.Fprintf(svg, `<title>%s</title></rect>`+"\n", escapeXML(Tooltip(b)))
}

func drawLegend(svg *strings.Builder, c chart, bars []model.LayoutBar, cat model.SourceCatalog) {
	x := float64(c.o.MarginLeft) + c.plotW + 20
	y := float64(c.o.MarginTop) + 4
	fmt.Fprintf(svg, `<text class="legend" x="%s" y="%s" font-weight="bold">%s</text>`+"\n",
		px(x), px(y+10), LegendTitle)

	row := 1
	for _, b := range bars {
		if !b.ShowLabelInLegend {
			continue
		}
		fill := uncatalogedFill
		if b.ColorIndex != schedule.UncatalogedColor {
			fill = c.o.Palette.Hex(b.ColorIndex)
		}
		ry := y + float64(row)*20
		fmt.Fprintf(svg, `<rect class="swatch" x="%s" y="%s" width="14" height="12" fill="%s"/>`,
			px(x), px(ry), fill)
		fmt.Fprintf(svg, `<text class="legend" x="%s" y="%s">%s</text>`+"\n",
			px(x+20), px(ry+10), escapeXML(cat.Label(b.SourceID)))
		row++
	}
}

// Tooltip is the hover text of a bar.
func Tooltip(b model.LayoutBar) string {
	if b.Start.IsZero() {
		return b.Title
	}
	return fmt.Sprintf("%s (%s-%s)", b.Title, b.Start.Format("15:04"), b.End.Format("15:04"))
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
