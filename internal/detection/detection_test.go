package detection

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := Compile(DefaultCueConfig())
	require.NoError(t, err)
	return rules
}

func msg(thread string, index int, body string) Message {
	return Message{Thread: thread, Index: index, Body: body}
}

func at(hour int) *time.Time {
	ts := time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC)
	return &ts
}

func words(n int, extra ...string) string {
	parts := append([]string{}, extra...)
	for len(parts) < n {
		parts = append(parts, "word")
	}
	return strings.Join(parts, " ")
}

func TestFilterNoise(t *testing.T) {
	rules := defaultRules(t)

	t.Run("short social message is noise", func(t *testing.T) {
		body := words(20, "pizza", "birthday", "cake")
		clean, dropped := FilterNoise(rules, []Message{msg("t", 0, body)})
		assert.Empty(t, clean)
		assert.Equal(t, 1, dropped)
	})

	t.Run("long message with same keywords survives", func(t *testing.T) {
		body := words(200, "pizza", "birthday", "cake")
		clean, dropped := FilterNoise(rules, []Message{msg("t", 0, body)})
		assert.Len(t, clean, 1)
		assert.Equal(t, 0, dropped)
	})

	t.Run("brevity alone is not noise", func(t *testing.T) {
		clean, dropped := FilterNoise(rules, []Message{msg("t", 0, "ok, thanks")})
		assert.Len(t, clean, 1)
		assert.Equal(t, 0, dropped)
	})

	t.Run("single keyword is not noise", func(t *testing.T) {
		assert.False(t, rules.IsNoise("lunch at noon?"))
	})

	t.Run("preserves order", func(t *testing.T) {
		in := []Message{
			msg("t", 0, "first"),
			msg("t", 1, "pizza and cake for the birthday!"),
			msg("t", 2, "second"),
			msg("t", 3, "third"),
		}
		clean, dropped := FilterNoise(rules, in)
		require.Len(t, clean, 3)
		assert.Equal(t, 1, dropped)
		assert.Equal(t, []int{0, 2, 3}, []int{clean[0].Index, clean[1].Index, clean[2].Index})
	})

	t.Run("more keywords never turn noise into signal", func(t *testing.T) {
		keywords := []string{"lunch", "pizza", "cake", "birthday", "surprise"}
		wasNoise := false
		for i := 1; i <= len(keywords); i++ {
			body := words(30, keywords[:i]...)
			isNoise := rules.IsNoise(body)
			if wasNoise {
				assert.True(t, isNoise, "hits=%d", i)
			}
			wasNoise = isNoise
		}
		assert.True(t, wasNoise)
	})

	t.Run("keywords match case-insensitively", func(t *testing.T) {
		assert.Equal(t, 2, rules.NoiseHits("PIZZA and Cake"))
	})
}

func TestExtractSignals(t *testing.T) {
	rules := defaultRules(t)

	t.Run("review request raises one open action", func(t *testing.T) {
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, "Can you please review the attached spec?")}, "Phoenix")
		require.Len(t, flags, 1)
		f := flags[0]
		assert.Equal(t, CategoryAction, f.Category())
		assert.Equal(t, StatusOpen, f.Status())
		assert.Equal(t, "Phoenix", f.Project())
		assert.Equal(t, Origin{Thread: "a.txt", Index: 0}, f.Origin())
		assert.NotEmpty(t, f.TriggerSnippet())
		assert.Empty(t, f.ResolutionSnippet())
		assert.Equal(t, `\bplease\b.*[\?!]`, f.Cue())
	})

	t.Run("conditional blocker is not a risk", func(t *testing.T) {
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, "If there's any blocker, let me know.")}, "Phoenix")
		for _, f := range flags {
			assert.NotEqual(t, CategoryRisk, f.Category())
		}
	})

	t.Run("conditional framing beyond the lookback window does not exempt", func(t *testing.T) {
		body := "If there is time later we can chat about the roadmap in detail. We are blocked on the API."
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, body)}, "Phoenix")
		require.Len(t, flags, 1)
		assert.Equal(t, CategoryRisk, flags[0].Category())
	})

	t.Run("at most one flag per category per message", func(t *testing.T) {
		body := "Can you check this? Could you also review it? We are blocked and stuck, this is urgent."
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, body)}, "Phoenix")
		require.Len(t, flags, 2)
		assert.Equal(t, CategoryAction, flags[0].Category())
		assert.Equal(t, CategoryRisk, flags[1].Category())
	})

	t.Run("first declared cue wins", func(t *testing.T) {
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, "We are stuck, scope changed again.")}, "Phoenix")
		require.Len(t, flags, 1)
		assert.Equal(t, `\bscope\b`, flags[0].Cue())
	})

	t.Run("snippet is verbatim and capped", func(t *testing.T) {
		body := strings.Repeat("x", 100) + " we are blocked on the API\n" + strings.Repeat("y ", 100)
		flags := ExtractSignals(rules, []Message{msg("a.txt", 0, body)}, "Phoenix")
		require.Len(t, flags, 1)
		snippet := flags[0].TriggerSnippet()
		assert.LessOrEqual(t, len([]rune(snippet)), DefaultSnippetLength)
		assert.NotContains(t, snippet, "\n")
		assert.Contains(t, collapseNewlines(body), snippet)
		assert.Contains(t, snippet, "blocked")
	})

	t.Run("trigger date copied from origin", func(t *testing.T) {
		m := msg("a.txt", 3, "We need a new login page.")
		m.Date = at(9)
		flags := ExtractSignals(rules, []Message{m}, "Phoenix")
		require.Len(t, flags, 1)
		require.NotNil(t, flags[0].TriggerDate())
		assert.True(t, flags[0].TriggerDate().Equal(*at(9)))
	})

	t.Run("no cues no flags", func(t *testing.T) {
		assert.Empty(t, ExtractSignals(rules, []Message{msg("a.txt", 0, "Thanks, see you tomorrow.")}, "Phoenix"))
	})
}

func riskFlag(t *testing.T, rules *Rules, m Message) Flag {
	t.Helper()
	flags := ExtractSignals(rules, []Message{m}, "Phoenix")
	for _, f := range flags {
		if f.Category() == CategoryRisk {
			return f
		}
	}
	t.Fatalf("no risk flag for %q", m.Body)
	return Flag{}
}

func TestDetectResolutions(t *testing.T) {
	rules := defaultRules(t)
	origin := msg("T", 0, "We are blocked on the API, cannot proceed")

	t.Run("same thread reply resolves", func(t *testing.T) {
		msgs := []Message{origin, msg("T", 1, "fixed it, unblocked now")}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		require.Len(t, flags, 1)
		assert.Equal(t, StatusResolved, flags[0].Status())
		assert.Equal(t, "fixed it, unblocked now", flags[0].ResolutionSnippet())
	})

	t.Run("later correction invalidates the candidate", func(t *testing.T) {
		msgs := []Message{
			origin,
			msg("T", 1, "fixed it, unblocked now"),
			msg("T", 2, "wait, that's wrong, re-open it"),
		}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		assert.Equal(t, StatusOpen, flags[0].Status())
		assert.Empty(t, flags[0].ResolutionSnippet())
	})

	t.Run("search continues after an invalidated candidate", func(t *testing.T) {
		msgs := []Message{
			origin,
			msg("T", 1, "fixed it, unblocked now"),
			msg("T", 2, "wait, that's wrong, re-open it"),
			msg("T", 3, "The API issue is resolved for real this time."),
		}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		assert.Equal(t, StatusResolved, flags[0].Status())
		assert.Contains(t, flags[0].ResolutionSnippet(), "resolved for real")
	})

	t.Run("correction in another thread does not invalidate", func(t *testing.T) {
		msgs := []Message{
			origin,
			msg("T", 1, "fixed it, unblocked now"),
			msg("U", 5, "wait, stop the deploy"),
		}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		assert.Equal(t, StatusResolved, flags[0].Status())
	})

	t.Run("never resolves against its own origin", func(t *testing.T) {
		self := msg("T", 0, "We were blocked but it is fixed now.")
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, self)}, []Message{self})
		assert.Equal(t, StatusOpen, flags[0].Status())
	})

	t.Run("earlier message in the same thread is ignored", func(t *testing.T) {
		trigger := msg("T", 1, "We are blocked on the API again")
		msgs := []Message{msg("T", 0, "fixed the build"), trigger}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, trigger)}, msgs)
		assert.Equal(t, StatusOpen, flags[0].Status())
	})

	t.Run("cross thread needs shared keywords", func(t *testing.T) {
		trigger := msg("A", 0, "We are stuck on the newsletter checkbox bug.")
		flag := riskFlag(t, rules, trigger)

		related := []Message{trigger, msg("B", 0, "The newsletter checkbox fixed on staging.")}
		flags := DetectResolutions(rules, []Flag{flag}, related)
		assert.Equal(t, StatusResolved, flags[0].Status())

		unrelated := []Message{trigger, msg("B", 0, "fixed it")}
		flags = DetectResolutions(rules, []Flag{flag}, unrelated)
		assert.Equal(t, StatusOpen, flags[0].Status())
	})

	t.Run("same thread skips the topical gate", func(t *testing.T) {
		trigger := msg("A", 0, "We are stuck on the newsletter checkbox bug.")
		msgs := []Message{trigger, msg("A", 1, "fixed it")}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, trigger)}, msgs)
		assert.Equal(t, StatusResolved, flags[0].Status())
	})

	t.Run("timestamps decide when both are known", func(t *testing.T) {
		trigger := msg("A", 0, "We are stuck on the newsletter checkbox bug.")
		trigger.Date = at(10)
		flag := riskFlag(t, rules, trigger)

		earlier := msg("B", 0, "newsletter checkbox fixed")
		earlier.Date = at(9)
		flags := DetectResolutions(rules, []Flag{flag}, []Message{earlier, trigger})
		assert.Equal(t, StatusOpen, flags[0].Status())

		same := msg("B", 0, "newsletter checkbox fixed")
		same.Date = at(10)
		flags = DetectResolutions(rules, []Flag{flag}, []Message{trigger, same})
		assert.Equal(t, StatusOpen, flags[0].Status())

		later := msg("B", 0, "newsletter checkbox fixed")
		later.Date = at(11)
		flags = DetectResolutions(rules, []Flag{flag}, []Message{trigger, later})
		assert.Equal(t, StatusResolved, flags[0].Status())
	})

	t.Run("unknown order counts as later", func(t *testing.T) {
		trigger := msg("A", 3, "We are stuck on the newsletter checkbox bug.")
		trigger.Date = at(10)
		flag := riskFlag(t, rules, trigger)

		undated := msg("B", 0, "newsletter checkbox fixed")
		flags := DetectResolutions(rules, []Flag{flag}, []Message{undated, trigger})
		assert.Equal(t, StatusResolved, flags[0].Status())

		undatedTrigger := msg("A", 3, "We are stuck on the newsletter checkbox bug.")
		flag = riskFlag(t, rules, undatedTrigger)
		undatedOther := msg("B", 0, "newsletter checkbox fixed")
		flags = DetectResolutions(rules, []Flag{flag}, []Message{undatedOther, undatedTrigger})
		assert.Equal(t, StatusResolved, flags[0].Status())
	})

	t.Run("first eligible candidate wins", func(t *testing.T) {
		msgs := []Message{
			origin,
			msg("T", 1, "I'll check with the API team"),
			msg("T", 2, "fixed it"),
		}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		assert.Equal(t, "I'll check with the API team", flags[0].ResolutionSnippet())
	})

	t.Run("resolution snippet is not length capped", func(t *testing.T) {
		long := "This was removed from " + strings.Repeat("the ", 40) + "scope for this release."
		msgs := []Message{origin, msg("T", 1, long)}
		flags := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		require.Equal(t, StatusResolved, flags[0].Status())
		assert.Greater(t, len([]rune(flags[0].ResolutionSnippet())), DefaultSnippetLength)
	})

	t.Run("idempotent", func(t *testing.T) {
		msgs := []Message{origin, msg("T", 1, "fixed it, unblocked now"), msg("T", 2, "done and dusted")}
		first := DetectResolutions(rules, []Flag{riskFlag(t, rules, origin)}, msgs)
		snapshot := append([]Flag(nil), first...)
		second := DetectResolutions(rules, first, msgs)
		assert.Equal(t, snapshot, second)
	})

	t.Run("non-open flags are untouched", func(t *testing.T) {
		flag := riskFlag(t, rules, origin)
		require.True(t, flag.Declassify())
		flags := DetectResolutions(rules, []Flag{flag}, []Message{origin, msg("T", 1, "fixed it")})
		assert.Equal(t, StatusFalsePositive, flags[0].Status())
		assert.Empty(t, flags[0].ResolutionSnippet())
	})
}

func TestDetectProjectResolutions(t *testing.T) {
	rules := defaultRules(t)
	origin := msg("T", 0, "We are blocked on the API, cannot proceed")
	flag := riskFlag(t, rules, origin)

	flags := DetectProjectResolutions(rules, []Flag{flag}, map[string][]Message{
		"Other":   {origin, msg("T", 1, "fixed it")},
		"Phoenix": {origin},
	})
	assert.Equal(t, StatusOpen, flags[0].Status())

	flags = DetectProjectResolutions(rules, []Flag{flag}, map[string][]Message{
		"Phoenix": {origin, msg("T", 1, "fixed it")},
	})
	assert.Equal(t, StatusResolved, flags[0].Status())
}

func TestFlagTransitions(t *testing.T) {
	rules := defaultRules(t)
	origin := msg("T", 0, "We are blocked on the API")

	t.Run("enrich only open flags", func(t *testing.T) {
		f := riskFlag(t, rules, origin)
		assert.True(t, f.Enrich(Enrichment{Owner: "anna@example.com", Priority: "HIGH", Summary: "API blocked", Confidence: "MEDIUM"}))
		assert.Equal(t, "anna@example.com", f.Owner())
		assert.Equal(t, "HIGH", f.Priority())

		require.True(t, f.resolve("fixed"))
		assert.False(t, f.Enrich(Enrichment{Owner: "someone"}))
		assert.Equal(t, "anna@example.com", f.Owner())
	})

	t.Run("resolved is terminal", func(t *testing.T) {
		f := riskFlag(t, rules, origin)
		require.True(t, f.resolve("fixed it"))
		assert.False(t, f.resolve("done"))
		assert.False(t, f.Declassify())
		assert.Equal(t, "fixed it", f.ResolutionSnippet())
		assert.Equal(t, StatusResolved, f.Status())
	})

	t.Run("empty resolution snippet is refused", func(t *testing.T) {
		f := riskFlag(t, rules, origin)
		assert.False(t, f.resolve(""))
		assert.Equal(t, StatusOpen, f.Status())
	})
}

func TestTally(t *testing.T) {
	rules := defaultRules(t)
	msgs := []Message{
		msg("T", 0, "Can you review this? We are blocked."),
		msg("T", 1, "Could you look at the login page?"),
	}
	flags := ExtractSignals(rules, msgs, "Phoenix")
	require.Len(t, flags, 3)
	require.True(t, flags[0].resolve("done"))
	require.True(t, flags[2].Declassify())

	c := Tally(flags)
	assert.Equal(t, Counts{Open: 1, Resolved: 1, FalsePositive: 1, OpenRisks: 1, ResolvedActions: 1}, c)
}
