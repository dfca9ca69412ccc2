package track

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// iso6391 lists the languages the normalizer knows about. Order matters for
// prefix lookups: the first language whose name starts with a token wins.
var iso6391 = []string{
	"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh",
	"ar", "hi", "bn", "pa", "ur", "fa", "tr", "pl", "nl", "sv",
	"no", "nb", "da", "fi", "is", "el", "he", "hu", "cs", "sk",
	"sl", "hr", "sr", "bs", "bg", "ro", "uk", "be", "lt", "lv",
	"et", "ka", "hy", "az", "kk", "uz", "mn", "th", "vi", "id",
	"ms", "tl", "km", "lo", "my", "si", "ta", "te", "kn", "ml",
	"mr", "gu", "ne", "sw", "am", "so", "yo", "ig", "ha", "zu",
	"xh", "af", "sq", "mk", "eu", "ca", "gl", "cy", "ga", "gd",
	"mt", "lb", "fo", "ps", "ku", "ky", "tg", "tk", "bo", "ug",
	"eo", "la",
}

// bibliographic maps ISO 639-2/B codes to their terminology equivalents.
var bibliographic = map[string]string{
	"alb": "sqi", "arm": "hye", "baq": "eus", "bur": "mya", "chi": "zho",
	"cze": "ces", "dut": "nld", "fre": "fra", "geo": "kat", "ger": "deu",
	"gre": "ell", "ice": "isl", "mac": "mkd", "may": "msa", "per": "fas",
	"rum": "ron", "slo": "slk", "tib": "bod", "wel": "cym",
}

type languageInfo struct {
	iso2 string
	iso3 string
	name string // lowercase English display name
}

var (
	languages []languageInfo
	byISO2    = map[string]int{}
	byISO3    = map[string]int{}
	byName    = map[string]int{}
)

func init() {
	namer := display.English.Languages()
	for _, code := range iso6391 {
		base, err := language.ParseBase(code)
		if err != nil {
			continue
		}
		name := strings.ToLower(namer.Name(language.Make(code)))
		if name == "" {
			continue
		}
		info := languageInfo{iso2: code, iso3: base.ISO3(), name: name}
		idx := len(languages)
		languages = append(languages, info)

		byISO2[info.iso2] = idx
		if _, dup := byISO3[info.iso3]; !dup {
			byISO3[info.iso3] = idx
		}
		if _, dup := byName[info.name]; !dup {
			byName[info.name] = idx
		}
	}
	for b, t := range bibliographic {
		if idx, ok := byISO3[t]; ok {
			byISO3[b] = idx
		}
	}
}

// lookup resolves a single cleaned span to a language, trying codes before names.
func lookup(span string) (languageInfo, bool) {
	switch len(span) {
	case 2:
		if idx, ok := byISO2[span]; ok {
			return languages[idx], true
		}
	case 3:
		if idx, ok := byISO3[span]; ok {
			return languages[idx], true
		}
	}
	if idx, ok := byName[span]; ok {
		return languages[idx], true
	}
	if len(span) >= 3 {
		for _, l := range languages {
			if strings.HasPrefix(l.name, span) {
				return l, true
			}
		}
	}
	return languageInfo{}, false
}
