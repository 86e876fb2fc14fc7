// Package narration renders the localized lines spoken during a hearing.
package narration

import (
	"strings"

	"golang.org/x/text/message"

	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/random"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
)

// Placeholders replaced by the player's honorific in narrated text.
var placeholders = []string{"{{honorific}}", "Dr(a)."}

// Narrator renders lines for one case in one locale.
type Narrator struct {
	bundle  *catalog.Bundle
	locale  string
	printer *message.Printer
	gender  casefile.Gender
}

// New returns a narrator for c. The case locale wins over fallbackLocale;
// unknown locales resolve to the catalog base locale.
func New(bundle *catalog.Bundle, c casefile.Case, fallbackLocale string) *Narrator {
	if bundle == nil {
		bundle = catalog.Default()
	}
	locale := strings.TrimSpace(c.Locale)
	if locale == "" {
		locale = fallbackLocale
	}
	locale = bundle.Resolve(locale)
	return &Narrator{
		bundle:  bundle,
		locale:  locale,
		printer: bundle.Printer(locale),
		gender:  c.PlayerGender,
	}
}

// Locale returns the resolved locale.
func (n *Narrator) Locale() string {
	return n.locale
}

// Honorific returns the player's form of address.
func (n *Narrator) Honorific() string {
	if n.gender == casefile.GenderFeminine {
		return n.printer.Sprintf("court.honorific.feminine")
	}
	return n.printer.Sprintf("court.honorific.masculine")
}

// Substitute replaces honorific placeholders in text.
func (n *Narrator) Substitute(text string) string {
	honorific := n.Honorific()
	for _, placeholder := range placeholders {
		text = strings.ReplaceAll(text, placeholder, honorific)
	}
	return text
}

// Greeting is the judge's opening line.
func (n *Narrator) Greeting(c casefile.Case) string {
	return n.Substitute(n.printer.Sprintf("court.greeting", c.Title, c.JudgeName))
}

// OpponentLabel names the opposing role.
func (n *Narrator) OpponentLabel(t casefile.OpponentType) string {
	if t == casefile.OpponentProsecutor {
		return n.printer.Sprintf("court.opponent.label.prosecutor")
	}
	return n.printer.Sprintf("court.opponent.label.private_counsel")
}

// OpponentIntro is the opposing counsel's self-introduction.
func (n *Narrator) OpponentIntro(c casefile.Case) string {
	return n.Substitute(n.printer.Sprintf("court.opponent.intro", c.OpponentName, n.OpponentLabel(c.OpponentType)))
}

// Reaction picks a judge reaction for a response of the given strength.
func (n *Narrator) Reaction(strength casefile.Strength, source random.Source) string {
	if !strength.Valid() {
		strength = casefile.StrengthMedium
	}
	return n.pick("court.reaction."+string(strength)+".", source)
}

// EvidenceAck picks a neutral acknowledgement of presented evidence.
func (n *Narrator) EvidenceAck(source random.Source) string {
	return n.pick("court.reaction.evidence.", source)
}

// Pronouncement is the final sentence for a ruling.
func (n *Narrator) Pronouncement(v verdict.Verdict, expectedVerdictText string) string {
	var key string
	switch v {
	case verdict.Granted:
		key = "court.verdict.granted"
	case verdict.PartiallyGranted:
		key = "court.verdict.partially_granted"
	default:
		key = "court.verdict.denied"
	}
	return strings.TrimSpace(n.Substitute(n.printer.Sprintf(key, expectedVerdictText)))
}

func (n *Narrator) pick(prefix string, source random.Source) string {
	keys := n.bundle.Keys(n.locale, prefix)
	if len(keys) == 0 {
		return ""
	}
	i := 0
	if source != nil && len(keys) > 1 {
		i = source.IntN(len(keys))
	}
	return n.Substitute(n.printer.Sprintf(keys[i]))
}
