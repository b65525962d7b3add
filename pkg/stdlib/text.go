package stdlib

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerText registers text.* functions.
func registerText(r *expr.Registry) {
	register(r, pure("text.find_all", 2, textFindAll))
	register(r, pure("text.find_all_regex", 2, textFindAllRegex))
	register(r, pure("text.match_regex", 2, textMatchRegex))
	register(r, pure("text.replace_all", 3, textReplaceAll))
	register(r, pure("text.replace_all_regex", 3, textReplaceAllRegex))
	register(r, pure("text.split", 2, textSplit))
	register(r, pure("text.substring", 3, textSubstring, expr.WithMin(2)))
	register(r, pure("text.to_lower", 1, textToLower))
	register(r, pure("text.to_upper", 1, textToUpper))
	register(r, pure("text.url_decode", 1, textURLDecode))
	register(r, pure("text.url_encode", 1, textURLEncode))
	register(r, pure("text.url_encode_plus", 1, textURLEncodePlus))
}

func texts(args []types.Value) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = convert.ToString(a)
	}
	return out
}

func compileRegex(name, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, types.NewConversionError("regex", name+": invalid pattern "+pattern+": "+err.Error())
	}
	return re, nil
}

// textFindAll answers the rune offsets of every occurrence of substr.
func textFindAll(args []types.Value) (types.Value, error) {
	s := texts(args)
	source, substr := s[0], s[1]
	var result []types.Value
	if substr == "" {
		return types.NewList(result), nil
	}
	offset := 0
	for {
		i := strings.Index(source[offset:], substr)
		if i < 0 {
			break
		}
		pos := offset + i
		result = append(result, types.NewInt(int64(utf8.RuneCountInString(source[:pos]))))
		offset = pos + len(substr)
	}
	return types.NewList(result), nil
}

func textFindAllRegex(args []types.Value) (types.Value, error) {
	s := texts(args)
	re, err := compileRegex("text.find_all_regex", s[1])
	if err != nil {
		return types.Null, err
	}
	var result []types.Value
	for _, m := range re.FindAllStringIndex(s[0], -1) {
		match := types.NewOrderedMap()
		match.Set("index", types.NewInt(int64(utf8.RuneCountInString(s[0][:m[0]]))))
		match.Set("match", types.NewString(s[0][m[0]:m[1]]))
		result = append(result, types.NewMap(match))
	}
	return types.NewList(result), nil
}

func textMatchRegex(args []types.Value) (types.Value, error) {
	s := texts(args)
	re, err := compileRegex("text.match_regex", s[1])
	if err != nil {
		return types.Null, err
	}
	return types.NewBool(re.MatchString(s[0])), nil
}

func textReplaceAll(args []types.Value) (types.Value, error) {
	s := texts(args)
	return types.NewString(strings.ReplaceAll(s[0], s[1], s[2])), nil
}

func textReplaceAllRegex(args []types.Value) (types.Value, error) {
	s := texts(args)
	re, err := compileRegex("text.replace_all_regex", s[1])
	if err != nil {
		return types.Null, err
	}
	return types.NewString(re.ReplaceAllString(s[0], s[2])), nil
}

func textSplit(args []types.Value) (types.Value, error) {
	s := texts(args)
	parts := strings.Split(s[0], s[1])
	result := make([]types.Value, len(parts))
	for i, p := range parts {
		result[i] = types.NewString(p)
	}
	return types.NewList(result), nil
}

// textSubstring answers the runes of source from start up to end. Bounds
// are clamped and a missing end means the end of the text.
func textSubstring(args []types.Value) (types.Value, error) {
	runes := []rune(convert.ToString(args[0]))
	start := clamp(int(convert.ToInt(args[1])), len(runes))
	end := len(runes)
	if len(args) > 2 && !args[2].IsNull() {
		end = clamp(int(convert.ToInt(args[2])), len(runes))
	}
	if start >= end {
		return types.NewString(""), nil
	}
	return types.NewString(string(runes[start:end])), nil
}

func clamp(i, n int) int {
	switch {
	case i < 0:
		return 0
	case i > n:
		return n
	}
	return i
}

func textToLower(args []types.Value) (types.Value, error) {
	return types.NewString(strings.ToLower(convert.ToString(args[0]))), nil
}

func textToUpper(args []types.Value) (types.Value, error) {
	return types.NewString(strings.ToUpper(convert.ToString(args[0]))), nil
}

func textURLDecode(args []types.Value) (types.Value, error) {
	s := convert.ToString(args[0])
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return types.Null, types.NewConversionError("text", "text.url_decode: "+err.Error())
	}
	return types.NewString(decoded), nil
}

func textURLEncode(args []types.Value) (types.Value, error) {
	return types.NewString(url.PathEscape(convert.ToString(args[0]))), nil
}

func textURLEncodePlus(args []types.Value) (types.Value, error) {
	return types.NewString(url.QueryEscape(convert.ToString(args[0]))), nil
}
