package cakemail

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// culture carries the locale-specific pieces used when rendering numbers and dates.
type culture struct {
	tag            language.Tag
	lang           string
	printer        *message.Printer
	decimalSep     string
	groupSep       string
	currencySymbol string
	currencyPrefix bool
	percentSpace   bool
	patterns       datePatterns
	names          *dateNames
}

// datePatterns holds the standard date/time patterns of a culture.
type datePatterns struct {
	shortDate string
	longDate  string
	shortTime string
	longTime  string
	monthDay  string
	yearMonth string
	dateSep   string
}

var (
	cultureCache sync.Map // string -> *culture

	invariantOnce sync.Once
	invariant     *culture
)

func invariantCulture() *culture {
	invariantOnce.Do(func() {
		invariant = newCulture(language.AmericanEnglish)
	})
	return invariant
}

// lookupCulture resolves a BCP 47 tag such as "en-US" or "de". Unknown or
// malformed tags fall back to en-US.
func lookupCulture(name string) *culture {
	if name == "" {
		return invariantCulture()
	}
	if c, ok := cultureCache.Load(name); ok {
		return c.(*culture)
	}
	tag, err := language.Parse(name)
	if err != nil {
		return invariantCulture()
	}
	c, _ := cultureCache.LoadOrStore(name, newCulture(tag))
	return c.(*culture)
}

func newCulture(tag language.Tag) *culture {
	base, _ := tag.Base()
	region, _ := tag.Region()
	c := &culture{
		tag:     tag,
		lang:    base.String(),
		printer: message.NewPrinter(tag),
	}
	c.decimalSep, c.groupSep = separatorsFor(c.printer)
	c.currencySymbol = currencySymbolFor(c.printer, tag)
	c.currencyPrefix = c.lang == "en"
	c.percentSpace = c.lang != "en"
	c.patterns = datePatternsFor(c.lang, region.String())
	c.names = getDateNames(c.lang)
	return c
}

// separatorsFor extracts the decimal and group separators by formatting a probe
// number with the culture's printer.
func separatorsFor(p *message.Printer) (decimalSep, groupSep string) {
	probe := p.Sprint(number.Decimal(1234.5, number.MinFractionDigits(1), number.MaxFractionDigits(1)))
	var runs []string
	var current strings.Builder
	for _, r := range probe {
		if unicode.IsDigit(r) {
			if current.Len() > 0 {
				runs = append(runs, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	switch len(runs) {
	case 0:
		return ".", ","
	case 1:
		return runs[0], ""
	default:
		return runs[len(runs)-1], runs[0]
	}
}

func currencySymbolFor(p *message.Printer, tag language.Tag) string {
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		return "¤"
	}
	sym := p.Sprint(currency.Symbol(unit))
	if sym == "" {
		return "¤"
	}
	return sym
}

func datePatternsFor(lang, region string) datePatterns {
	switch lang {
	case "de":
		return datePatterns{"dd.MM.yyyy", "dddd, d. MMMM yyyy", "HH:mm", "HH:mm:ss", "d. MMMM", "MMMM yyyy", "."}
	case "fr":
		return datePatterns{"dd/MM/yyyy", "dddd d MMMM yyyy", "HH:mm", "HH:mm:ss", "d MMMM", "MMMM yyyy", "/"}
	case "es":
		return datePatterns{"dd/MM/yyyy", "dddd, d 'de' MMMM 'de' yyyy", "H:mm", "H:mm:ss", "d 'de' MMMM", "MMMM 'de' yyyy", "/"}
	case "it":
		return datePatterns{"dd/MM/yyyy", "dddd d MMMM yyyy", "HH:mm", "HH:mm:ss", "d MMMM", "MMMM yyyy", "/"}
	case "en":
		if region != "US" && region != "ZZ" && region != "" {
			return datePatterns{"dd/MM/yyyy", "dddd, d MMMM yyyy", "HH:mm", "HH:mm:ss", "d MMMM", "MMMM yyyy", "/"}
		}
	}
	return datePatterns{"M/d/yyyy", "dddd, MMMM d, yyyy", "h:mm tt", "h:mm:ss tt", "MMMM d", "MMMM yyyy", "/"}
}

// localizeDecimalPoint swaps the invariant '.' for the culture's separator.
func (c *culture) localizeDecimalPoint(s string) string {
	if c.decimalSep == "." {
		return s
	}
	return strings.Replace(s, ".", c.decimalSep, 1)
}

// dateNames holds translated month and weekday names.
type dateNames struct {
	months        [12]string
	monthsShort   [12]string
	weekdays      [7]string // Sunday first
	weekdaysShort [7]string
}

var englishDateNames = &dateNames{
	months: [12]string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"},
	monthsShort: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	weekdays:      [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	weekdaysShort: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
}

func getDateNames(lang string) *dateNames {
	switch lang {
	case "de":
		return &dateNames{
			months: [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni",
				"Juli", "August", "September", "Oktober", "November", "Dezember"},
			monthsShort: [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun",
				"Jul", "Aug", "Sep", "Okt", "Nov", "Dez"},
			weekdays:      [7]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
			weekdaysShort: [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
		}
	case "fr":
		return &dateNames{
			months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin",
				"juillet", "août", "septembre", "octobre", "novembre", "décembre"},
			monthsShort: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin",
				"juil.", "août", "sept.", "oct.", "nov.", "déc."},
			weekdays:      [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
			weekdaysShort: [7]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."},
		}
	case "es":
		return &dateNames{
			months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio",
				"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
			monthsShort: [12]string{"ene", "feb", "mar", "abr", "may", "jun",
				"jul", "ago", "sep", "oct", "nov", "dic"},
			weekdays:      [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
			weekdaysShort: [7]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
		}
	case "it":
		return &dateNames{
			months: [12]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno",
				"luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"},
			monthsShort: [12]string{"gen", "feb", "mar", "apr", "mag", "giu",
				"lug", "ago", "set", "ott", "nov", "dic"},
			weekdays:      [7]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"},
			weekdaysShort: [7]string{"dom", "lun", "mar", "mer", "gio", "ven", "sab"},
		}
	default:
		return englishDateNames
	}
}

// translateEnglishNames rewrites English month and weekday names produced by
// an external formatter into the culture's language.
func (c *culture) translateEnglishNames(s string) string {
	if c.names == englishDateNames {
		return s
	}
	// Full names first so "January" is not mangled by the "Jan" rule.
	var pairs []string
	for i := range englishDateNames.months {
		pairs = append(pairs, englishDateNames.months[i], c.names.months[i])
	}
	for i := range englishDateNames.weekdays {
		pairs = append(pairs, englishDateNames.weekdays[i], c.names.weekdays[i])
	}
	for i := range englishDateNames.monthsShort {
		pairs = append(pairs, englishDateNames.monthsShort[i], c.names.monthsShort[i])
	}
	for i := range englishDateNames.weekdaysShort {
		pairs = append(pairs, englishDateNames.weekdaysShort[i], c.names.weekdaysShort[i])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
