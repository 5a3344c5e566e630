package linguistics

import (
	"github.com/blevesearch/bleve/v2/analysis/lang/ar"
	"github.com/blevesearch/bleve/v2/analysis/lang/da"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fi"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/hu"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/nl"
	"github.com/blevesearch/bleve/v2/analysis/lang/no"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/analysis/lang/ro"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/analysis/lang/sv"
	"github.com/blevesearch/bleve/v2/analysis/lang/tr"
	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/arabic"
	"github.com/blevesearch/snowballstem/danish"
	"github.com/blevesearch/snowballstem/dutch"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/finnish"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
	"github.com/blevesearch/snowballstem/hungarian"
	"github.com/blevesearch/snowballstem/italian"
	"github.com/blevesearch/snowballstem/norwegian"
	"github.com/blevesearch/snowballstem/portuguese"
	"github.com/blevesearch/snowballstem/romanian"
	"github.com/blevesearch/snowballstem/russian"
	"github.com/blevesearch/snowballstem/spanish"
	"github.com/blevesearch/snowballstem/swedish"
	"github.com/blevesearch/snowballstem/turkish"
)

// bundle pairs a snowball stop list with the snowball stemmer for the same
// language. Languages are keyed by their lower-case English name.
type bundle struct {
	stopWords []byte
	stem      func(*snowballstem.Env) bool
}

var bundles = map[string]bundle{
	"arabic":     {stopWords: ar.ArabicStopWords, stem: arabic.Stem},
	"danish":     {stopWords: da.DanishStopWords, stem: danish.Stem},
	"dutch":      {stopWords: nl.DutchStopWords, stem: dutch.Stem},
	"english":    {stopWords: en.EnglishStopWords, stem: english.Stem},
	"finnish":    {stopWords: fi.FinnishStopWords, stem: finnish.Stem},
	"french":     {stopWords: fr.FrenchStopWords, stem: french.Stem},
	"german":     {stopWords: de.GermanStopWords, stem: german.Stem},
	"hungarian":  {stopWords: hu.HungarianStopWords, stem: hungarian.Stem},
	"italian":    {stopWords: it.ItalianStopWords, stem: italian.Stem},
	"norwegian":  {stopWords: no.NorwegianStopWords, stem: norwegian.Stem},
	"portuguese": {stopWords: pt.PortugueseStopWords, stem: portuguese.Stem},
	"romanian":   {stopWords: ro.RomanianStopWords, stem: romanian.Stem},
	"russian":    {stopWords: ru.RussianStopWords, stem: russian.Stem},
	"spanish":    {stopWords: es.SpanishStopWords, stem: spanish.Stem},
	"swedish":    {stopWords: sv.SwedishStopWords, stem: swedish.Stem},
	"turkish":    {stopWords: tr.TurkishStopWords, stem: turkish.Stem},
}
