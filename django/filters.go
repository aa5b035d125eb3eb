package django

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
	"github.com/kr/text"
	"golang.org/x/text/unicode/norm"

	"github.com/ajg/synth"
	"github.com/ajg/synth/value"
)

// Builtins returns the library of filters every django template can use
// without loading anything.
func Builtins() synth.Library {
	return synth.NewBundle(nil, map[string]synth.Filter{
		"add":             filterAdd,
		"addslashes":      filterAddSlashes,
		"capfirst":        filterCapFirst,
		"center":          filterCenter,
		"cut":             filterCut,
		"date":            filterDate,
		"default":         filterDefault,
		"default_if_none": filterDefaultIfNone,
		"divisibleby":     filterDivisibleBy,
		"escape":          filterEscape,
		"filesizeformat":  filterFileSizeFormat,
		"first":           filterFirst,
		"floatformat":     filterFloatFormat,
		"force_escape":    filterForceEscape,
		"join":            filterJoin,
		"last":            filterLast,
		"length":          filterLength,
		"length_is":       filterLengthIs,
		"linebreaksbr":    filterLineBreaksBR,
		"ljust":           filterLJust,
		"lower":           filterLower,
		"make_list":       filterMakeList,
		"pluralize":       filterPluralize,
		"rjust":           filterRJust,
		"safe":            filterSafe,
		"slice":           filterSlice,
		"slugify":         filterSlugify,
		"striptags":       filterStripTags,
		"time":            filterTime,
		"title":           filterTitle,
		"truncatechars":   filterTruncateChars,
		"truncatewords":   filterTruncateWords,
		"upper":           filterUpper,
		"urlencode":       filterURLEncode,
		"wordcount":       filterWordCount,
		"wordwrap":        filterWordWrap,
		"yesno":           filterYesNo,
	})
}

func arg(args []value.Value, i int) (value.Value, bool) {
	if i < len(args) {
		return args[i], true
	}
	return value.None(), false
}

func intArg(name string, args []value.Value) (int, error) {
	a, ok := arg(args, 0)
	if !ok {
		return 0, synth.Errorf(synth.ErrInvalidArgument, "%s requires an argument", name)
	}
	n, err := a.Int()
	if err != nil {
		return 0, synth.Errorf(synth.ErrInvalidArgument, "%s requires an integer argument, got %s", name, a.Repr())
	}
	return int(n), nil
}

// str returns a string Value that is safe when in is.
func str(in value.Value, s string) value.Value {
	if in.IsSafe() {
		return value.Safe(s)
	}
	return value.Of(s)
}

// ----------------------------------------------------------------------------
// strings
// ----------------------------------------------------------------------------

func filterUpper(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return str(in, strings.ToUpper(in.String())), nil
}

func filterLower(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return str(in, strings.ToLower(in.String())), nil
}

func filterCapFirst(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	s := in.String()
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return in, nil
	}
	return str(in, string(unicode.ToUpper(r))+s[size:]), nil
}

// filterTitle capitalizes the first letter of every word and lowercases the
// rest. Letters after an apostrophe or a digit are not capitalized.
func filterTitle(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	var b strings.Builder
	prev := ' '
	for _, r := range in.String() {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsLetter(prev) || prev == '\'' || unicode.IsDigit(prev):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
		prev = r
	}
	return str(in, b.String()), nil
}

func filterAddSlashes(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`)
	return str(in, r.Replace(in.String())), nil
}

func filterCut(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	a, _ := arg(args, 0)
	return value.Of(strings.ReplaceAll(in.String(), a.String(), "")), nil
}

func pad(name string, in value.Value, args []value.Value, align func(s string, n int) string) (value.Value, error) {
	width, err := intArg(name, args)
	if err != nil {
		return value.None(), err
	}
	s := in.String()
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return in, nil
	}
	return str(in, align(s, n)), nil
}

func filterLJust(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return pad("ljust", in, args, func(s string, n int) string {
		return s + strings.Repeat(" ", n)
	})
}

func filterRJust(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return pad("rjust", in, args, func(s string, n int) string {
		return strings.Repeat(" ", n) + s
	})
}

func filterCenter(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	width, _ := intArg("center", args)
	return pad("center", in, args, func(s string, n int) string {
		left := n/2 + (n & width & 1)
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-left)
	})
}

func filterEscape(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	if in.IsSafe() {
		return in, nil
	}
	return value.Safe(Escape(in.String())), nil
}

func filterForceEscape(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return value.Safe(Escape(in.String())), nil
}

func filterSafe(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return value.Safe(in.String()), nil
}

func filterLineBreaksBR(in value.Value, _ []value.Value, _ *synth.Context, opts *synth.Options) (value.Value, error) {
	s := strings.ReplaceAll(in.String(), "\r\n", "\n")
	if opts.AutoEscape && !in.IsSafe() {
		s = Escape(s)
	}
	return value.Safe(strings.ReplaceAll(s, "\n", "<br>")), nil
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]*?>`)
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugHyphen = regexp.MustCompile(`[-\s]+`)
)

func filterStripTags(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	s := in.String()
	for {
		stripped := htmlTag.ReplaceAllString(s, "")
		if stripped == s {
			return value.Of(s), nil
		}
		s = stripped
	}
}

// filterSlugify converts to ASCII, drops everything but letters, digits,
// underscores, hyphens and spaces, lowercases and joins words with hyphens.
func filterSlugify(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(in.String()) {
		if r < utf8.RuneSelf {
			ascii.WriteRune(r)
		}
	}
	s := slugStrip.ReplaceAllString(strings.ToLower(ascii.String()), "")
	s = slugHyphen.ReplaceAllString(strings.TrimSpace(s), "-")
	return value.Safe(strings.Trim(s, "-_")), nil
}

func filterTruncateChars(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	n, err := intArg("truncatechars", args)
	if err != nil {
		return value.None(), err
	}
	runes := []rune(in.String())
	if len(runes) <= n {
		return in, nil
	}
	if n < 1 {
		return str(in, "…"), nil
	}
	return str(in, string(runes[:n-1])+"…"), nil
}

func filterTruncateWords(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	n, err := intArg("truncatewords", args)
	if err != nil {
		return value.None(), err
	}
	words := strings.Fields(in.String())
	if len(words) <= n {
		return str(in, strings.Join(words, " ")), nil
	}
	return str(in, strings.Join(words[:max(n, 0)], " ")+" …"), nil
}

// urlencode escapes s for use in a URL, leaving the characters in safe
// alone.
func urlencode(s, safe string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(safe, r) {
			b.WriteRune(r)
			continue
		}
		b.WriteString(strings.ReplaceAll(url.QueryEscape(string(r)), "+", "%20"))
	}
	return b.String()
}

func filterURLEncode(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	safe := "/"
	if a, ok := arg(args, 0); ok {
		safe = a.String()
	}
	return value.Of(urlencode(in.String(), safe)), nil
}

func filterWordCount(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	return value.Of(len(strings.Fields(in.String()))), nil
}

func filterWordWrap(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	width, err := intArg("wordwrap", args)
	if err != nil {
		return value.None(), err
	}
	lines := strings.Split(in.String(), "\n")
	for i, line := range lines {
		lines[i] = text.Wrap(line, width)
	}
	return str(in, strings.Join(lines, "\n")), nil
}

// ----------------------------------------------------------------------------
// sequences
// ----------------------------------------------------------------------------

func filterFirst(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	for v := range in.All() {
		return v, nil
	}
	return value.Of(""), nil
}

func filterLast(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	items, err := in.Items()
	if err != nil || len(items) == 0 {
		return value.Of(""), nil
	}
	return items[len(items)-1], nil
}

func filterLength(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	n, err := in.Len()
	if err != nil {
		return value.Of(0), nil
	}
	return value.Of(n), nil
}

func filterLengthIs(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	want, err := intArg("length_is", args)
	if err != nil {
		return value.None(), err
	}
	n, err := in.Len()
	if err != nil {
		return value.Of(""), nil
	}
	return value.Of(n == want), nil
}

func filterJoin(in value.Value, args []value.Value, _ *synth.Context, opts *synth.Options) (value.Value, error) {
	items, err := in.Items()
	if err != nil {
		return in, nil
	}
	sep, _ := arg(args, 0)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
		if opts.AutoEscape && !item.IsSafe() {
			parts[i] = Escape(parts[i])
		}
	}
	s := sep.String()
	if opts.AutoEscape && !sep.IsSafe() {
		s = Escape(s)
	}
	return value.Safe(strings.Join(parts, s)), nil
}

func filterMakeList(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	items, err := value.Of(in.String()).Items()
	if err != nil {
		return value.None(), err
	}
	return value.Of(items), nil
}

// filterSlice applies a Python slice such as ":2", "1:-1" or "::2".
func filterSlice(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	a, ok := arg(args, 0)
	if !ok {
		return value.None(), synth.Errorf(synth.ErrInvalidArgument, "slice requires an argument")
	}
	items, err := in.Items()
	if err != nil {
		return value.None(), err
	}
	idx, err := sliceIndices(a.String(), len(items))
	if err != nil {
		return value.None(), err
	}
	out := make([]value.Value, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	if in.IsString() {
		var b strings.Builder
		for _, v := range out {
			b.WriteString(v.String())
		}
		return str(in, b.String()), nil
	}
	return value.Of(out), nil
}

func sliceIndices(spec string, n int) ([]int, error) {
	parts := strings.Split(spec, ":")
	if len(parts) > 3 {
		return nil, synth.Errorf(synth.ErrInvalidArgument, "invalid slice %q", spec)
	}
	field := func(i int) (int, bool, error) {
		if i >= len(parts) || strings.TrimSpace(parts[i]) == "" {
			return 0, false, nil
		}
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0, false, synth.Errorf(synth.ErrInvalidArgument, "invalid slice %q", spec)
		}
		return v, true, nil
	}
	step, hasStep, err := field(2)
	if err != nil {
		return nil, err
	}
	if !hasStep {
		step = 1
	}
	if step == 0 {
		return nil, synth.Errorf(synth.ErrInvalidArgument, "slice step cannot be zero")
	}
	start, hasStart, err := field(0)
	if err != nil {
		return nil, err
	}
	stop, hasStop, err := field(1)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 {
		// A single index selects one element.
		if start < 0 {
			start += n
		}
		if start < 0 || start >= n {
			return nil, nil
		}
		return []int{start}, nil
	}

	clamp := func(i, lo, hi int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, lo), hi)
	}
	var out []int
	if step > 0 {
		lo, hi := 0, n
		if hasStart {
			lo = clamp(start, 0, n)
		}
		if hasStop {
			hi = clamp(stop, 0, n)
		}
		for i := lo; i < hi; i += step {
			out = append(out, i)
		}
		return out, nil
	}
	hi, lo := n-1, -1
	if hasStart {
		hi = clamp(start, -1, n-1)
	}
	if hasStop {
		lo = clamp(stop, -1, n-1)
	}
	for i := hi; i > lo; i += step {
		out = append(out, i)
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// logic
// ----------------------------------------------------------------------------

func filterDefault(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	if in.Truth() {
		return in, nil
	}
	d, _ := arg(args, 0)
	return d, nil
}

func filterDefaultIfNone(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	if !in.IsNone() {
		return in, nil
	}
	d, _ := arg(args, 0)
	return d, nil
}

func filterYesNo(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	choices := "yes,no,maybe"
	if a, ok := arg(args, 0); ok {
		choices = a.String()
	}
	parts := strings.Split(choices, ",")
	if len(parts) < 2 {
		return in, nil
	}
	if len(parts) == 2 {
		parts = append(parts, parts[1])
	}
	switch {
	case in.IsNone():
		return value.Of(parts[2]), nil
	case in.Truth():
		return value.Of(parts[0]), nil
	}
	return value.Of(parts[1]), nil
}

func filterPluralize(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	singular, plural := "", "s"
	if a, ok := arg(args, 0); ok {
		if before, after, found := strings.Cut(a.String(), ","); found {
			singular, plural = before, after
		} else {
			plural = a.String()
		}
	}
	one := false
	if f, err := in.Number(); err == nil {
		one = f == 1
	} else if n, err := in.Len(); err == nil {
		one = n == 1
	}
	if one {
		return value.Of(singular), nil
	}
	return value.Of(plural), nil
}

// ----------------------------------------------------------------------------
// numbers
// ----------------------------------------------------------------------------

func filterAdd(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	a, _ := arg(args, 0)
	x, errX := in.Int()
	y, errY := a.Int()
	if errX == nil && errY == nil {
		return value.Of(x + y), nil
	}
	v, err := value.Add(in, a)
	if err != nil {
		return value.Of(""), nil
	}
	return v, nil
}

func filterDivisibleBy(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	d, err := intArg("divisibleby", args)
	if err != nil {
		return value.None(), err
	}
	n, err := in.Int()
	if err != nil || d == 0 {
		return value.Of(false), nil
	}
	return value.Of(n%int64(d) == 0), nil
}

var sizeUnits = []string{"KB", "MB", "GB", "TB", "PB"}

func filterFileSizeFormat(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	f, err := in.Number()
	if err != nil {
		f = 0
	}
	neg := f < 0
	f = math.Abs(f)
	var s string
	if f < 1024 {
		s = fmt.Sprintf("%d bytes", int64(f))
		if int64(f) == 1 {
			s = "1 byte"
		}
	} else {
		unit := 0
		for f /= 1024; f >= 1024 && unit < len(sizeUnits)-1; unit++ {
			f /= 1024
		}
		s = fmt.Sprintf("%.1f %s", f, sizeUnits[unit])
	}
	if neg {
		s = "-" + s
	}
	return value.Of(s), nil
}

// filterFloatFormat rounds half up to the number of decimal places given
// by its argument, -1 by default. A negative argument shows decimals only
// when the number has a fractional part.
func filterFloatFormat(in value.Value, args []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	places := -1
	if a, ok := arg(args, 0); ok {
		n, err := a.Int()
		if err != nil {
			return in, nil
		}
		places = int(n)
	}

	var src string
	if in.IsString() {
		src = strings.TrimSpace(in.String())
	} else {
		f, err := in.Number()
		if err != nil {
			return value.Of(""), nil
		}
		src = strconv.FormatFloat(f, 'f', -1, 64)
	}
	d, _, err := apd.NewFromString(src)
	if err != nil {
		return value.Of(""), nil
	}

	var integ, frac apd.Decimal
	d.Modf(&integ, &frac)
	exp := int32(-abs(places))
	if places < 0 && frac.IsZero() {
		exp = 0
	}
	ctx := apd.BaseContext.WithPrecision(100)
	ctx.Rounding = apd.RoundHalfUp
	var q apd.Decimal
	if _, err := ctx.Quantize(&q, d, exp); err != nil {
		return value.Of(""), nil
	}
	if q.IsZero() {
		q.Negative = false
	}
	return value.Safe(q.Text('f')), nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ----------------------------------------------------------------------------
// dates
// ----------------------------------------------------------------------------

func formatTime(in value.Value, args []value.Value, opts *synth.Options, named, fallback string) value.Value {
	t, err := in.Time()
	if err != nil {
		return value.Of("")
	}
	layout := opts.Format(named, fallback)
	if a, ok := arg(args, 0); ok {
		layout = opts.Format(a.String(), a.String())
	}
	return value.Of(FormatDate(t, layout, opts.Locale))
}

func filterDate(in value.Value, args []value.Value, _ *synth.Context, opts *synth.Options) (value.Value, error) {
	return formatTime(in, args, opts, "DATE_FORMAT", DefaultDateFormat), nil
}

func filterTime(in value.Value, args []value.Value, _ *synth.Context, opts *synth.Options) (value.Value, error) {
	return formatTime(in, args, opts, "TIME_FORMAT", DefaultTimeFormat), nil
}
