package feed

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

type dateNames struct {
	months      [12]string
	monthsShort [12]string
	days        [7]string
	daysShort   [7]string
	daysMin     [7]string
	ordinal     func(int) string
}

func splitNames(s string) []string {
	return strings.Split(s, "_")
}

func newDateNames(months, monthsShort, days, daysShort, daysMin string, ordinal func(int) string) *dateNames {
	n := &dateNames{ordinal: ordinal}
	copy(n.months[:], splitNames(months))
	copy(n.monthsShort[:], splitNames(monthsShort))
	copy(n.days[:], splitNames(days))
	copy(n.daysShort[:], splitNames(daysShort))
	copy(n.daysMin[:], splitNames(daysMin))
	return n
}

func suffixOrdinal(suffix string) func(int) string {
	return func(n int) string { return strconv.Itoa(n) + suffix }
}

var englishNames = newDateNames(
	"January_February_March_April_May_June_July_August_September_October_November_December",
	"Jan_Feb_Mar_Apr_May_Jun_Jul_Aug_Sep_Oct_Nov_Dec",
	"Sunday_Monday_Tuesday_Wednesday_Thursday_Friday_Saturday",
	"Sun_Mon_Tue_Wed_Thu_Fri_Sat",
	"Su_Mo_Tu_We_Th_Fr_Sa",
	ordinal,
)

// Index order matches localeMatcher's supported tags.
var localeNames = []*dateNames{
	englishNames,
	newDateNames(
		"janvier_février_mars_avril_mai_juin_juillet_août_septembre_octobre_novembre_décembre",
		"janv._févr._mars_avr._mai_juin_juil._août_sept._oct._nov._déc.",
		"dimanche_lundi_mardi_mercredi_jeudi_vendredi_samedi",
		"dim._lun._mar._mer._jeu._ven._sam.",
		"di_lu_ma_me_je_ve_sa",
		func(n int) string {
			if n == 1 {
				return "1er"
			}
			return strconv.Itoa(n)
		},
	),
	newDateNames(
		"Januar_Februar_März_April_Mai_Juni_Juli_August_September_Oktober_November_Dezember",
		"Jan._Feb._März_Apr._Mai_Juni_Juli_Aug._Sep._Okt._Nov._Dez.",
		"Sonntag_Montag_Dienstag_Mittwoch_Donnerstag_Freitag_Samstag",
		"So._Mo._Di._Mi._Do._Fr._Sa.",
		"So_Mo_Di_Mi_Do_Fr_Sa",
		suffixOrdinal("."),
	),
	newDateNames(
		"enero_febrero_marzo_abril_mayo_junio_julio_agosto_septiembre_octubre_noviembre_diciembre",
		"ene_feb_mar_abr_may_jun_jul_ago_sep_oct_nov_dic",
		"domingo_lunes_martes_miércoles_jueves_viernes_sábado",
		"dom._lun._mar._mié._jue._vie._sáb.",
		"do_lu_ma_mi_ju_vi_sá",
		suffixOrdinal("º"),
	),
	newDateNames(
		"gennaio_febbraio_marzo_aprile_maggio_giugno_luglio_agosto_settembre_ottobre_novembre_dicembre",
		"gen_feb_mar_apr_mag_giu_lug_ago_set_ott_nov_dic",
		"domenica_lunedì_martedì_mercoledì_giovedì_venerdì_sabato",
		"dom_lun_mar_mer_gio_ven_sab",
		"do_lu_ma_me_gi_ve_sa",
		suffixOrdinal("º"),
	),
	newDateNames(
		"janeiro_fevereiro_março_abril_maio_junho_julho_agosto_setembro_outubro_novembro_dezembro",
		"jan_fev_mar_abr_mai_jun_jul_ago_set_out_nov_dez",
		"domingo_segunda-feira_terça-feira_quarta-feira_quinta-feira_sexta-feira_sábado",
		"dom_seg_ter_qua_qui_sex_sáb",
		"do_2ª_3ª_4ª_5ª_6ª_sá",
		suffixOrdinal("º"),
	),
}

var localeMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.French,
	language.German,
	language.Spanish,
	language.Italian,
	language.Portuguese,
})

// namesForLocale returns month and weekday names for a BCP 47 locale.
// Unsupported locales render in English.
func namesForLocale(tag language.Tag) *dateNames {
	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No || index >= len(localeNames) {
		return englishNames
	}
	return localeNames[index]
}
