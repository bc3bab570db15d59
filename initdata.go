package tgauth

import (
	"bytes"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
)

// InitDataPayload is the parsed form of one canonical init-data string. It
// lives only for the duration of a single verification call and is never
// persisted.
type InitDataPayload struct {
	Raw      string
	Pairs    url.Values
	Hash     string
	AuthDate int64
	UserJSON string
}

// ExtractInitData normalizes the two wire shapes a Mini App host may hand
// over into one canonical query string. A JSON string (or bare query-string
// bytes) passes through unchanged, so extract(extract(x)) == extract(x). A
// field-keyed object is serialized deterministically: keys sorted, nested
// values re-marshaled as compact JSON, URL encoding applied.
func ExtractInitData(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", withMeta(ErrMalformedInitData, map[string]any{
			"reason": "empty init data",
		})
	}

	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		return canonicalString(asString)
	}

	if trimmed[0] == '{' {
		return canonicalFromObject(trimmed)
	}

	// Bare query-string bytes, as produced by a previous extraction.
	return canonicalString(string(trimmed))
}

func canonicalString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "=") {
		return "", withMeta(ErrMalformedInitData, map[string]any{
			"reason": "not a query string",
		})
	}
	if _, err := url.ParseQuery(s); err != nil {
		return "", errors.Wrap(err, ErrMalformedInitData.Category, ErrMalformedInitData.Message).
			WithTextCode(ErrMalformedInitData.TextCode).
			WithCode(ErrMalformedInitData.Code)
	}
	return s, nil
}

func canonicalFromObject(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return "", errors.Wrap(err, ErrMalformedInitData.Category, ErrMalformedInitData.Message).
			WithTextCode(ErrMalformedInitData.TextCode).
			WithCode(ErrMalformedInitData.Code)
	}
	if len(fields) == 0 {
		return "", withMeta(ErrMalformedInitData, map[string]any{
			"reason": "empty init data object",
		})
	}

	values := url.Values{}
	for key, val := range fields {
		str, err := stringifyField(val)
		if err != nil {
			return "", err
		}
		values.Set(key, str)
	}

	// url.Values.Encode sorts keys, which keeps the output deterministic.
	return values.Encode(), nil
}

func stringifyField(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	default:
		// Nested objects (user, chat) are carried as compact JSON, matching
		// what the host itself embeds in the query string.
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrap(err, ErrMalformedInitData.Category, ErrMalformedInitData.Message).
				WithTextCode(ErrMalformedInitData.TextCode).
				WithCode(ErrMalformedInitData.Code)
		}
		return string(encoded), nil
	}
}

// ParseInitData splits a canonical query string into the payload consumed by
// Validator. The hash pair is pulled out; remaining pairs stay available for
// the data-check-string.
func ParseInitData(canonical string) (*InitDataPayload, error) {
	pairs, err := url.ParseQuery(canonical)
	if err != nil {
		return nil, errors.Wrap(err, ErrMalformedInitData.Category, ErrMalformedInitData.Message).
			WithTextCode(ErrMalformedInitData.TextCode).
			WithCode(ErrMalformedInitData.Code)
	}
	if len(pairs) == 0 {
		return nil, withMeta(ErrMalformedInitData, map[string]any{
			"reason": "no key/value pairs",
		})
	}

	payload := &InitDataPayload{
		Raw:      canonical,
		Pairs:    pairs,
		Hash:     pairs.Get("hash"),
		UserJSON: pairs.Get("user"),
	}
	pairs.Del("hash")

	if ad := pairs.Get("auth_date"); ad != "" {
		authDate, err := parseUnixSeconds(ad)
		if err != nil {
			return nil, withMeta(ErrMalformedInitData, map[string]any{
				"reason": "auth_date is not unix seconds",
			})
		}
		payload.AuthDate = authDate
	}

	return payload, nil
}

// DataCheckString builds the signing input: remaining keys sorted
// lexicographically, joined as key=value lines separated by newlines.
func (p *InitDataPayload) DataCheckString() string {
	keys := make([]string, 0, len(p.Pairs))
	for key := range p.Pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+p.Pairs.Get(key))
	}
	return strings.Join(lines, "\n")
}

// ProjectUser decodes the user field into the identity projection.
func (p *InitDataPayload) ProjectUser() (*TelegramUser, error) {
	if strings.TrimSpace(p.UserJSON) == "" {
		return nil, withMeta(ErrMissingUserData, map[string]any{
			"reason": "user field absent",
		})
	}

	user := &TelegramUser{}
	if err := json.Unmarshal([]byte(p.UserJSON), user); err != nil {
		return nil, errors.Wrap(err, ErrMissingUserData.Category, ErrMissingUserData.Message).
			WithTextCode(ErrMissingUserData.TextCode).
			WithCode(ErrMissingUserData.Code)
	}
	if user.ID <= 0 {
		return nil, withMeta(ErrMissingUserData, map[string]any{
			"reason": "user id missing or non-positive",
		})
	}
	return user, nil
}

func parseUnixSeconds(s string) (int64, error) {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrMalformedInitData
		}
		n = n*10 + int64(r-'0')
	}
	return n, nil
}
