package django

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ajg/synth"
	"github.com/ajg/synth/value"
)

// Humanize returns the library loaded by {% load humanize %}.
func Humanize() synth.Library {
	return synth.NewBundle(nil, map[string]synth.Filter{
		"apnumber": filterAPNumber,
		"intcomma": filterIntComma,
		"ordinal":  filterOrdinal,
	})
}

var apNumbers = [...]string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// filterAPNumber spells out 1 to 9 the way the Associated Press does.
func filterAPNumber(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	n, err := in.Int()
	if err != nil || n < 1 || n > 9 {
		return in, nil
	}
	return value.Of(apNumbers[n-1]), nil
}

// filterIntComma groups the digits of a number the way the configured
// locale does.
func filterIntComma(in value.Value, _ []value.Value, _ *synth.Context, opts *synth.Options) (value.Value, error) {
	f, err := in.Number()
	if err != nil {
		return in, nil
	}
	tag, err := language.Parse(string(opts.Locale))
	if err != nil {
		tag = language.AmericanEnglish
	}
	p := message.NewPrinter(tag)
	if i, err := in.Int(); err == nil && float64(i) == f {
		return value.Of(p.Sprint(number.Decimal(i))), nil
	}
	return value.Of(p.Sprint(number.Decimal(f))), nil
}

func filterOrdinal(in value.Value, _ []value.Value, _ *synth.Context, _ *synth.Options) (value.Value, error) {
	n, err := in.Int()
	if err != nil {
		return in, nil
	}
	return value.Of(strconv.FormatInt(n, 10) + ordinalSuffix(int(n))), nil
}
