package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"listing-leads/config"
	"listing-leads/models"
)

// SellerClassifier labels a listing as private seller or professional, and whether
// the seller accepts agency contact.
type SellerClassifier struct {
	precedence string
	agency     []termMatcher
	rejection  []string
	refCode    *regexp.Regexp
	minDescLen int
}

// NewSellerClassifier builds a classifier from validated rules.
func NewSellerClassifier(rules config.SellerRules) *SellerClassifier {
	c := &SellerClassifier{
		precedence: rules.Precedence,
		agency:     newTermMatchers(rules.AgencyTerms),
		minDescLen: rules.MinDescriptionLength,
	}
	for _, p := range rules.RejectionPhrases {
		if f := fold(p); f != "" {
			c.rejection = append(c.rejection, f)
		}
	}
	if rules.RefCodePattern != "" {
		c.refCode = regexp.MustCompile("(?i)" + rules.RefCodePattern)
	}
	return c
}

// Classify combines the upstream flag, seller-name keywords, rejection phrases and weak
// description heuristics. With precedence "upstream" a portal-supplied flag decides
// es_particular; with "keywords" an agency term in the seller name overrides it.
func (c *SellerClassifier) Classify(l *models.NormalizedListing) models.SellerVerdict {
	desc := fold(l.Description)
	agencyTerm := firstTerm(c.agency, fold(l.SellerName))

	v := models.SellerVerdict{EsParticular: true, PermiteInmobiliarias: true}

	switch {
	case c.precedence == config.PrecedenceKeywords && agencyTerm != "":
		v.EsParticular, v.Reason = false, "agency_name:"+agencyTerm
	case l.UpstreamParticular != nil:
		v.EsParticular = *l.UpstreamParticular
		v.Confident = v.EsParticular
		if v.EsParticular {
			v.Reason = "upstream:particular"
		} else {
			v.Reason = "upstream:professional"
		}
	case agencyTerm != "":
		v.EsParticular, v.Reason = false, "agency_name:"+agencyTerm
	case c.refCode != nil && c.refCode.MatchString(desc):
		v.EsParticular, v.Reason = false, "ref_code_prefix"
	case c.minDescLen > 0 && utf8.RuneCountInString(strings.TrimSpace(l.Description)) < c.minDescLen:
		v.EsParticular, v.Reason = false, "short_description"
	default:
		v.Reason = "no_agency_signal"
	}

	for _, phrase := range c.rejection {
		if strings.Contains(desc, phrase) {
			v.PermiteInmobiliarias = false
			if v.EsParticular {
				v.Reason = "rejects_agencies:" + phrase
			}
			break
		}
	}
	return v
}

// Gate turns a verdict into a filtering decision. Only contactable sellers pass.
func (c *SellerClassifier) Gate(v models.SellerVerdict) error {
	switch {
	case !v.EsParticular:
		return filtered(ErrProfessionalSeller, v.Reason)
	case !v.PermiteInmobiliarias:
		return filtered(ErrRejectsAgencies, v.Reason)
	}
	return nil
}
