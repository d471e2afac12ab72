package tree

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/livetree-dev/livetree/pkg/protocol"
)

// nowMillis is the timestamp given to chart points without an explicit time.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Transformer turns raw chart items into charts keyed by title. Each chart is
// {title, type, series: [{name, data: [[t, v]...]}]}.
type Transformer interface {
	Key() string
	Transform(items []any) (map[string]any, error)
}

// Chart is a Chart element.
type Chart struct {
	*Element
}

var chartMethods = map[string]Method{
	"add": func(e *Element, args Args) error {
		return Chart{e}.Add(args.Slice("data"))
	},
	"set": func(e *Element, args Args) error {
		return Chart{e}.Set(args.Slice("data"))
	},
}

func initChart(e *Element, args Args) error {
	t, err := NewTransformer(args["transform"])
	if err != nil {
		return err
	}
	charts, err := t.Transform(toSlice(args["data"]))
	if err != nil {
		return err
	}
	if err := checkCharts(charts); err != nil {
		return err
	}
	options := args.Map("options")
	if options == nil {
		options = map[string]any{}
	}
	var window any
	if w, ok := toInt(args["moving_window"]); ok {
		window = w
	}

	e.mu.Lock()
	e.state = t
	e.mu.Unlock()
	e.UpdateData(map[string]any{"data": charts, "options": options, "movingWindow": window})
	return nil
}

// Transformer returns the chart's transformer.
func (c Chart) Transformer() Transformer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, _ := c.state.(Transformer)
	return t
}

// Add transforms items and appends them to the existing series, creating
// charts and series as needed.
func (c Chart) Add(items []any) error {
	t := c.Transformer()
	added, err := t.Transform(items)
	if err != nil {
		return err
	}
	if err := checkCharts(added); err != nil {
		return err
	}
	if err := c.mergeData(added); err != nil {
		return err
	}
	c.UpdateElement([]string{"data", "data"}, protocol.VerbAddChartData, cloneMap(added))
	return nil
}

// mergeData merges added into a copy of the chart data and stores the copy
// only when the merge succeeds.
func (c Chart) mergeData(added map[string]any) error {
	c.lockLive("add chart data")
	defer c.mu.Unlock()
	existing, _ := c.data["data"].(map[string]any)
	merged := cloneMap(existing)
	if merged == nil {
		merged = map[string]any{}
	}
	if err := mergeCharts(merged, added); err != nil {
		return err
	}
	c.data["data"] = merged
	return nil
}

// Set replaces the chart data.
func (c Chart) Set(items []any) error {
	charts, err := c.Transformer().Transform(items)
	if err != nil {
		return err
	}
	if err := checkCharts(charts); err != nil {
		return err
	}
	c.lockLive("set chart data")
	c.data["data"] = charts
	c.mu.Unlock()
	c.UpdateElement([]string{"data", "data"}, protocol.VerbSet, cloneMap(charts))
	return nil
}

// checkCharts verifies the {title, series: [{name, data: [...]}]} shape of
// every chart.
func checkCharts(charts map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(charts)) {
		if _, err := chartParts(key, charts[key]); err != nil {
			return err
		}
	}
	return nil
}

// chartParts returns the series of a chart value after checking its shape.
func chartParts(key string, v any) ([]map[string]any, error) {
	chart, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: chart %q must be a mapping, got %T", ErrInvalidArgs, key, v)
	}
	if _, ok := chart["title"].(string); !ok {
		return nil, fmt.Errorf("%w: chart %q title must be a string, got %T", ErrInvalidArgs, key, chart["title"])
	}
	list, ok := chart["series"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: chart %q series must be a list, got %T", ErrInvalidArgs, key, chart["series"])
	}
	series := make([]map[string]any, len(list))
	for i, s := range list {
		m, ok := s.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: chart %q series %d must be a mapping, got %T", ErrInvalidArgs, key, i, s)
		}
		if _, ok := m["data"].([]any); !ok {
			return nil, fmt.Errorf("%w: chart %q series %d data must be a list, got %T", ErrInvalidArgs, key, i, m["data"])
		}
		series[i] = m
	}
	return series, nil
}

func mergeCharts(existing, added map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(added)) {
		in, err := chartParts(key, added[key])
		if err != nil {
			return err
		}
		chart := added[key].(map[string]any)
		title := chart["title"].(string)
		cur, ok := existing[title].(map[string]any)
		if !ok {
			cur = map[string]any{"title": title, "type": chart["type"], "series": []any{}}
			existing[title] = cur
		}
		series, _ := cur["series"].([]any)
		for _, s := range in {
			merged := false
			for _, es := range series {
				have, ok := es.(map[string]any)
				if !ok || have["name"] != s["name"] {
					continue
				}
				data, _ := have["data"].([]any)
				have["data"] = append(slices.Clip(data), s["data"].([]any)...)
				merged = true
				break
			}
			if !merged {
				series = append(series, cloneMap(s))
			}
		}
		cur["series"] = series
	}
	return nil
}

// NewTransformer resolves a transform argument: nil or "noop", "numbers",
// a levels key such as "23to1", or {type: flat, chart_mapping,
// series_mapping, value_key}.
func NewTransformer(v any) (Transformer, error) {
	switch t := v.(type) {
	case nil:
		return noopTransformer{}, nil
	case Transformer:
		return t, nil
	case string:
		switch t {
		case "", "noop":
			return noopTransformer{}, nil
		case "numbers":
			return numbersTransformer{}, nil
		}
		if lt, ok := parseLevels(t); ok {
			return lt, nil
		}
	case map[string]any:
		if t["type"] == "flat" {
			a := Args(t)
			ft := flatTransformer{
				charts:   stringList(a.Slice("chart_mapping")),
				series:   stringList(a.Slice("series_mapping")),
				valueKey: a.String("value_key", "value"),
			}
			return ft, nil
		}
	}
	return nil, fmt.Errorf("%w: no chart transformer for %v", ErrInvalidArgs, v)
}

func stringList(items []any) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return out
}

// timedItem splits an optional [seconds, item] pair. The item must be a
// mapping or a list so a plain pair of numbers stays a pair of values.
func timedItem(now int64, item any) (int64, any) {
	pair := toSlice(item)
	if len(pair) != 2 {
		return now, item
	}
	switch pair[1].(type) {
	case map[string]any, []any:
	default:
		return now, item
	}
	switch sec := pair[0].(type) {
	case float64:
		return int64(sec * 1000), pair[1]
	case int:
		return int64(sec) * 1000, pair[1]
	case int64:
		return sec * 1000, pair[1]
	}
	return now, item
}

type noopTransformer struct{}

func (noopTransformer) Key() string { return "noop" }

// Transform expects items to already be charts, either as one mapping of
// title to chart or as a list of charts.
func (noopTransformer) Transform(items []any) (map[string]any, error) {
	out := map[string]any{}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: noop chart item must be a mapping, got %T", ErrInvalidArgs, item)
		}
		if _, isChart := m["series"]; isChart {
			title, _ := m["title"].(string)
			out[title] = cloneMap(m)
			continue
		}
		for title, chart := range m {
			out[title] = cloneValue(chart)
		}
	}
	if err := checkCharts(out); err != nil {
		return nil, err
	}
	return out, nil
}

type numbersTransformer struct{}

func (numbersTransformer) Key() string { return "numbers" }

// Transform treats each item as a number or a list of numbers, one series
// per position. A timed item is [seconds, [numbers...]].
func (numbersTransformer) Transform(items []any) (map[string]any, error) {
	now := nowMillis()
	byIndex := map[int][]any{}
	for _, item := range items {
		var t int64
		t, item = timedItem(now, item)
		values := toSlice(item)
		if values == nil {
			values = []any{item}
		}
		for i, v := range values {
			byIndex[i] = append(byIndex[i], []any{t, v})
		}
	}
	series := make([]any, 0, len(byIndex))
	for _, i := range slices.Sorted(maps.Keys(byIndex)) {
		series = append(series, map[string]any{"name": i + 1, "data": byIndex[i]})
	}
	return map[string]any{
		"": map[string]any{"title": "", "type": "line", "series": series},
	}, nil
}

type flatTransformer struct {
	charts   []string
	series   []string
	valueKey string
}

func (flatTransformer) Key() string { return "flat" }

// Transform groups mapping items into charts and series by the configured
// key combinations.
func (f flatTransformer) Transform(items []any) (map[string]any, error) {
	now := nowMillis()
	grouped := newChartGroups()
	for _, item := range items {
		var t int64
		t, item = timedItem(now, item)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: flat chart item must be a mapping, got %T", ErrInvalidArgs, item)
		}
		grouped.add(joinKeys(m, f.charts), joinKeys(m, f.series), []any{t, m[f.valueKey]})
	}
	return grouped.charts(), nil
}

func joinKeys(m map[string]any, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprint(m[k])
	}
	return strings.Join(parts, " ")
}

// levelsTransformer handles nested mappings: the chart key is built from the
// keys at the chart levels and the series key from the series levels
// (levels are 1-based).
type levelsTransformer struct {
	charts []int
	series []int
}

func parseLevels(s string) (levelsTransformer, bool) {
	from, to, ok := strings.Cut(s, "to")
	if !ok || from == "" || to == "" {
		return levelsTransformer{}, false
	}
	digits := func(s string) ([]int, bool) {
		out := make([]int, 0, len(s))
		for _, r := range s {
			n, err := strconv.Atoi(string(r))
			if err != nil {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	charts, ok1 := digits(from)
	series, ok2 := digits(to)
	if !ok1 || !ok2 {
		return levelsTransformer{}, false
	}
	return levelsTransformer{charts: charts, series: series}, true
}

func (l levelsTransformer) Key() string {
	var b strings.Builder
	for _, n := range l.charts {
		b.WriteString(strconv.Itoa(n))
	}
	b.WriteString("to")
	for _, n := range l.series {
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Transform walks every leaf of every item.
func (l levelsTransformer) Transform(items []any) (map[string]any, error) {
	now := nowMillis()
	grouped := newChartGroups()
	for _, item := range items {
		var t int64
		t, item = timedItem(now, item)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: levels chart item must be a mapping, got %T", ErrInvalidArgs, item)
		}
		var err error
		walkLeaves(m, nil, func(path []string, v any) {
			if err != nil {
				return
			}
			chartKey, e1 := pickLevels(path, l.charts)
			seriesKey, e2 := pickLevels(path, l.series)
			if e1 != nil || e2 != nil {
				err = fmt.Errorf("%w: levels %s do not match item depth %d", ErrInvalidArgs, l.Key(), len(path))
				return
			}
			grouped.add(chartKey, seriesKey, []any{t, v})
		})
		if err != nil {
			return nil, err
		}
	}
	return grouped.charts(), nil
}

func walkLeaves(m map[string]any, path []string, fn func([]string, any)) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		p := append(slices.Clip(path), k)
		if inner, ok := m[k].(map[string]any); ok {
			walkLeaves(inner, p, fn)
			continue
		}
		fn(p, m[k])
	}
}

func pickLevels(path []string, levels []int) (string, error) {
	parts := make([]string, len(levels))
	for i, lvl := range levels {
		if lvl < 1 || lvl > len(path) {
			return "", ErrInvalidArgs
		}
		parts[i] = path[lvl-1]
	}
	return strings.Join(parts, " "), nil
}

// chartGroups accumulates points per chart and series, keeping first-seen
// order.
type chartGroups struct {
	order  []string
	series map[string][]string
	points map[string]map[string][]any
}

func newChartGroups() *chartGroups {
	return &chartGroups{series: map[string][]string{}, points: map[string]map[string][]any{}}
}

func (g *chartGroups) add(chart, series string, point []any) {
	if _, ok := g.points[chart]; !ok {
		g.order = append(g.order, chart)
		g.points[chart] = map[string][]any{}
	}
	if _, ok := g.points[chart][series]; !ok {
		g.series[chart] = append(g.series[chart], series)
	}
	g.points[chart][series] = append(g.points[chart][series], point)
}

func (g *chartGroups) charts() map[string]any {
	out := make(map[string]any, len(g.order))
	for _, chart := range g.order {
		series := make([]any, 0, len(g.series[chart]))
		for _, name := range g.series[chart] {
			series = append(series, map[string]any{"name": name, "data": g.points[chart][name]})
		}
		out[chart] = map[string]any{"title": chart, "type": "line", "series": series}
	}
	return out
}
