// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     intent
// Description: Ordered intent rule table
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package intent

import (
	"regexp"
	"strconv"
)

// Rule is one entry of the ordered classification table. The first rule
// whose pattern matches the folded utterance wins, so every rule must come
// after the more specific rules it could shadow.
type Rule struct {
	Name    string
	Tag     Tag
	Pattern *regexp.Regexp
	Extract func(m []string, in *Intent)
}

// index takes the first numeric capture group as the 1-based index
func index(m []string, in *Intent) {
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		if n, err := strconv.Atoi(g); err == nil {
			in.Index = n
			return
		}
	}
}

var (
	toneFormal   = regexp.MustCompile(`\bforma(l|is)\b`)
	toneShort    = regexp.MustCompile(`\b(curt[ao]|breve|rapid[ao]|short|brief)\b`)
	toneFriendly = regexp.MustCompile(`\b(amigavel|simpatic[ao]|informal|friendly|casual)\b`)
)

func reply(m []string, in *Intent) {
	index(m, in)
	text := Fold(in.Text)
	switch {
	case toneFormal.MatchString(text):
		in.Tone = ToneFormal
	case toneShort.MatchString(text):
		in.Tone = ToneShort
	case toneFriendly.MatchString(text):
		in.Tone = ToneFriendly
	default:
		in.Tone = ToneNeutral
	}
}

const (
	delVerb  = `(?:apag\w*|delet\w*|exclu\w*|remov\w*|jog\w* (?:fora|no lixo|na lixeira)|lixeira|delete|remove|trash)`
	markVerb = `(?:marc\w*|deix\w*|coloc\w*|mark|flag)`
	readVerb = `(?:le|ler|leia|leia-me|abr\w*|mostr\w*|read|open|show)`
	msgNoun  = `(?:email|emails|mensagem|mensagens|mail|message|numero)`
	unread   = `(?:nao lid[oa]s?|unread)\b`
	read     = `(?:lid[oa]s?|read)\b`

	// Full verb forms only, so "executivo" or "aplicativo" never dispatch
	queueVerb = `(?:execut(?:ar|e|a)|process(?:ar|e|a)|aplic(?:ar|e|a)|despach(?:ar|e|a)|envi(?:ar|e|a))`
	queueNoun = `(?:fila|acoes(?: pendentes)?|pendencias|tudo)`
	// Consent and refusal must be the whole utterance, give or take a
	// courtesy word. Looser phrasing is judged by Affirmative while a
	// confirmation is pending.
	politeTail = `(?:\s+(?:sim|que sim|pode|por favor|obrigad[oa]|please|thanks)){0,2}`
)

// DefaultRules returns the classification table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{"stop", Stop, regexp.MustCompile(`^(?:pare|parar|para|chega|silencio|quieto|cala a boca|cala-te|stop|shut up|be quiet)(?: de falar| ai| agora| por favor)?$`), nil},
		{"delete-all", DeleteAll, regexp.MustCompile(`\b` + delVerb + `\b.*\b(?:todos|todas|tudo|all|everything)\b`), nil},
		{"mark-unread", QueueMarkUnread, regexp.MustCompile(`\b` + markVerb + `\b(?:.*?\b(\d{1,3})\b.*\b` + unread + `|.*\b` + unread + `.*?\b(\d{1,3})\b)`), index},
		{"mark-read", QueueMarkRead, regexp.MustCompile(`\b` + markVerb + `\b(?:.*?\b(\d{1,3})\b.*\b` + read + `|.*\b` + read + `.*?\b(\d{1,3})\b)`), index},
		{"suggest-reply", SuggestReply, regexp.MustCompile(`\b(?:respond\w*|respost\w*|rascunh\w*|redig\w*|reply|draft|answer)\b.*?\b(\d{1,3})\b`), reply},
		{"queue-delete", QueueDelete, regexp.MustCompile(`\b` + delVerb + `\b.*?\b(\d{1,3})\b`), index},
		{"read-numbered", ReadEmail, regexp.MustCompile(`\b` + readVerb + `\b.*?\b` + msgNoun + `\s+(\d{1,3})\b`), index},
		{"numbered-only", ReadEmail, regexp.MustCompile(`^(?:o |a )?` + msgNoun + `\s+(\d{1,3})$`), index},
		{"clear-queue", ClearQueue, regexp.MustCompile(`\b(?:limp\w*|esvazi\w*|cancel\w*|descart\w*|zer\w*|clear|empty|discard)\b.*\b(?:fila|tudo|acoes|pendencias|queue|everything|all)\b`), nil},
		{"dispatch-queue", DispatchQueue, regexp.MustCompile(`\b(?:` + queueVerb + `\s+(?:a |as |os |toda a |todas as )?` + queueNoun + `|dispatch|execute (?:the )?queue|run the queue|send all|apply (?:the )?(?:queue|actions))\b|^` + queueVerb + `(?:\s+(?:agora|tudo|por favor))?$`), nil},
		{"show-queue", ShowQueue, regexp.MustCompile(`\b(?:fila|acoes pendentes|pendencias|o que (?:esta|ta) pendente|queue|pending actions)\b`), nil},
		{"approve", Approve, regexp.MustCompile(`^(?:sim|s|pode|confirm\w*|aprov\w*|ok|okay|claro|com certeza|isso|isso mesmo|manda|manda ver|vai|autoriz\w*|certo|positivo|yes|yeah|yep|sure|go ahead|do it|approve\w*)` + politeTail + `$`), nil},
		{"deny", Deny, regexp.MustCompile(`^(?:nao|negativo|cancel\w*|nunca|esquece|deixa pra la|deixa|no|nope|never mind|dont|don t)` + politeTail + `$`), nil},
		{"refresh", Refresh, regexp.MustCompile(`\b(?:atualiz\w*|recarreg\w*|sincroniz\w*|busc\w* (?:novos|de novo)|refresh|reload|sync)\b`), nil},
		{"next", Next, regexp.MustCompile(`\b(?:proxim[oa]|seguinte|avanc\w*|next)\b`), nil},
		{"repeat", Repeat, regexp.MustCompile(`\b(?:repet\w*|de novo|novamente|outra vez|repeat|again|say that again)\b`), nil},
		{"count", CountEmails, regexp.MustCompile(`\b(?:quant[oa]s|how many|count)\b`), nil},
		{"list", ListEmails, regexp.MustCompile(`\b(?:list\w*|quais (?:sao )?(?:os |as )?(?:emails|mensagens)|list)\b`), nil},
		{"summary", Summary, regexp.MustCompile(`\b(?:resum\w*|panorama|visao geral|summar\w*|overview)\b`), nil},
		{"triage", Triage, regexp.MustCompile(`\b(?:triag\w*|prioriz\w*|priorid\w*|organiz\w*|classific\w*|urgent\w*|triage|prioriti\w*)\b`), nil},
		{"help", Help, regexp.MustCompile(`\b(?:ajuda|socorro|comandos|o que (?:voce )?(?:pode|sabe) fazer|help|commands)\b`), nil},
		{"read-current", ReadEmail, regexp.MustCompile(`^(?:` + readVerb + `)(?:\s+(?:o|a|os|as|meu|meus|minhas?|this|my|the))?(?:\s+` + msgNoun + `)?$`), nil},
	}
}
