package classify

import (
	"fmt"
	"sort"
	"strings"
)

// Curated pattern tables. All matching happens against lower-cased input, so
// every entry here is lower case. Ordering inside each table is irrelevant;
// ordering ACROSS groups is fixed by the classifier's priority chain.

// Cognitive-offloading phrasing: the student asks for the finished answer
// instead of engaging with the reasoning.
var offloadingSolutionPhrases = []string{
	"just tell me",
	"just give me",
	"give me the answer",
	"give me the solution",
	"tell me the answer",
	"tell me what to do",
	"do it for me",
	"solve it for me",
	"what's the answer",
	"whats the answer",
	"write it for me",
	"can you just",
	"hand me the answer",
	"spell it out for me",
	"just write it",
	"just do it",
	"answer it for me",
	"finish it for me",
	"complete it for me",
	"what is the solution",
	"show me the answer",
	"give me the full answer",
}

// Avoidance phrasing: dodging the reasoning work rather than demanding the
// answer outright.
var offloadingAvoidancePhrases = []string{
	"i can't do this",
	"i cant do this",
	"this is too hard",
	"too difficult for me",
	"i give up",
	"i don't want to think",
	"i dont want to think",
	"skip the explanation",
	"i'll never get this",
	"ill never get this",
	"not smart enough",
	"this is impossible",
	"i'm done trying",
	"im done trying",
	"can't be bothered",
	"cant be bothered",
	"why even bother",
	"i quit",
}

// Overreliance phrasing: leaning on the tutor for every step.
var offloadingOverreliancePhrases = []string{
	"what should i do next",
	"tell me my next step",
	"what do i do now",
	"you decide",
	"whatever you think",
	"just pick for me",
	"what comes next",
	"what's my next move",
	"whats my next move",
	"you choose",
	"decide for me",
	"pick one for me",
}

// Overconfidence markers.
var overconfidenceMarkers = []string{
	"obviously",
	"clearly",
	"definitely",
	"perfect",
	"optimal",
	"the best solution",
	"the only way",
	"without a doubt",
	"no question",
	"i'm certain",
	"im certain",
	"certainly",
	"undoubtedly",
	"flawless",
	"guaranteed",
	"no doubt about it",
	"one hundred percent",
	"100 percent",
	"i already know",
	"couldn't be simpler",
	"couldnt be simpler",
}

// Topic-transition phrasing.
var topicTransitionPhrases = []string{
	"let's talk about",
	"lets talk about",
	"let's switch to",
	"lets switch to",
	"switch to",
	"moving on to",
	"change the subject",
	"new topic",
	"different question now",
	"can we discuss",
	"on another note",
	"shifting gears",
	"a different topic",
	"unrelated question",
	"before i forget",
	"next topic",
	"something else entirely",
}

// Specific-intent tables, matched in the classifier's fixed priority order.

var designGuidancePhrases = []string{
	"how should i approach",
	"how do i approach",
	"what's the best way to design",
	"whats the best way to design",
	"how should i organize",
	"how should i structure",
	"guidance on my design",
	"design strategy",
	"which direction should",
	"how would you approach",
	"where should i begin",
	"how would i go about",
	"what's a good starting point",
	"whats a good starting point",
	"how should i plan",
	"how should i lay out",
	"design direction",
	"organizing idea",
	"design parti",
}

var confusionPhrases = []string{
	"i'm confused",
	"im confused",
	"i don't understand",
	"i dont understand",
	"i'm lost",
	"im lost",
	"makes no sense",
	"doesn't make sense",
	"doesnt make sense",
	"not sure what you mean",
	"i don't get it",
	"i dont get it",
	"i'm baffled",
	"im baffled",
	"went over my head",
	"can't follow",
	"cant follow",
	"totally lost",
	"what is going on",
}

var clarificationPhrases = []string{
	"what do you mean",
	"can you clarify",
	"could you clarify",
	"can you rephrase",
	"can you explain that again",
	"say that again",
	"in other words",
	"what does that mean",
	"could you elaborate",
	"can you elaborate",
	"can you be more specific",
	"could you be more specific",
	"what exactly do you mean",
	"could you restate",
	"can you give more detail",
}

var evaluationPhrases = []string{
	"is this good",
	"is this correct",
	"is this right",
	"am i on the right track",
	"does this work",
	"is my approach",
	"evaluate my",
	"is it okay if",
	"rate my",
	"did i do this right",
	"is this acceptable",
	"how did i do",
	"grade my",
	"check my work",
	"does this hold up",
	"am i close",
}

var feedbackPhrases = []string{
	"feedback on",
	"what do you think of",
	"what do you think about",
	"thoughts on my",
	"review my",
	"critique my",
	"comments on my",
	"your opinion on",
	"any suggestions for my",
	"impressions of my",
	"assess my",
	"weigh in on",
}

var examplePhrases = []string{
	"example",
	"examples",
	"precedent",
	"precedents",
	"case study",
	"case studies",
	"show me projects",
	"similar projects",
	"reference project",
	"for instance",
	"real-world example",
	"real world example",
	"built projects like",
	"who has done this",
	"sample project",
	"analogous projects",
}

var technicalPhrases = []string{
	"how does",
	"why does",
	"what happens when",
	"what is the difference between",
	"structural",
	"load-bearing",
	"hvac",
	"mechanical system",
	"code requirement",
	"regulation",
	"specification",
	"calculate",
	"dimension",
	"tolerance",
	"u-value",
	"insulation",
	"cantilever",
	"curtain wall",
	"egress",
	"fire rating",
	"acoustics",
	"thermal bridge",
	"waterproofing",
	"seismic",
}

var implementationPhrases = []string{
	"how do i build",
	"how do i implement",
	"how do i make",
	"how to construct",
	"step by step",
	"steps to",
	"implement this",
	"put this into practice",
	"how do i put together",
	"how do i set up",
	"how do i get started on",
	"how to fabricate",
	"how to assemble",
	"what order should i",
	"what tools do i need",
}

var improvementPhrases = []string{
	"how can i improve",
	"how do i improve",
	"make it better",
	"make this better",
	"strengthen my",
	"refine my",
	"what's missing from",
	"whats missing from",
	"could be better",
	"polish my",
	"tighten up",
	"take it further",
	"push this further",
	"what would make this stronger",
	"weak points in my",
	"where does this fall short",
}

var knowledgePhrases = []string{
	"what is",
	"what are",
	"tell me about",
	"explain",
	"describe",
	"definition of",
	"information about",
	"learn about",
	"background on",
	"overview of",
	"history of",
	"introduction to",
	"basics of",
	"meaning of",
	"summarize",
}

// Interrogative cues used by the contextual fallback.
var interrogativeCues = []string{
	"what", "why", "how", "when", "where", "which", "who",
	"can", "could", "should", "would", "is", "are", "do", "does",
}

// Level word tiers. Counting matches against these tiers, combined with
// length and punctuation heuristics, yields the three derived levels.

var understandingHighWords = []string{
	"because", "therefore", "relationship", "connects", "integrates",
	"trade-off", "tradeoff", "implies", "consequently", "synthesis",
	"principle", "framework", "interplay", "hierarchy", "underlying",
	"coherent", "derives from", "reinforces", "in tension with",
}

var understandingLowWords = []string{
	"confused", "lost", "unsure", "don't know", "dont know", "no idea",
	"unclear", "huh", "baffled", "over my head", "i'm guessing",
	"im guessing", "what's happening", "whats happening",
}

var uncertaintyWords = []string{
	"maybe", "perhaps", "i think", "i guess", "not sure", "possibly",
	"might", "probably", "kind of", "sort of", "presumably", "i suppose",
	"it seems", "seems like", "hard to say",
}

var confidentWords = []string{
	"i believe", "i'm confident", "im confident", "i know", "certain",
	"sure that", "convinced", "no doubt", "i'm positive", "im positive",
	"for sure", "absolutely",
}

var engagementHighWords = []string{
	"fascinating", "interesting", "curious", "excited", "love", "wonder",
	"what if", "explore", "dig into", "tell me more", "intriguing",
	"can't wait", "cant wait", "eager", "keen to", "i'd love to",
	"id love to",
}

var engagementLowWords = []string{
	"boring", "whatever", "fine", "ok", "okay", "sure", "i guess",
	"doesn't matter", "doesnt matter", "meh", "don't care", "dont care",
	"if you say so", "not bothered",
}

// Curiosity, stuck, mastery, and framing markers feed the router's
// gamification triggers; they are detected here so the router stays lexical-
// analysis free.
var curiosityMarkers = []string{
	"what if", "i wonder", "curious about", "could we try", "what would happen",
	"how come", "what about trying", "is it possible to",
	"i keep thinking about",
}

var stuckMarkers = []string{
	"stuck", "going in circles", "hit a wall", "can't figure", "cant figure",
	"not making progress", "same problem again", "spinning my wheels",
	"dead end", "out of ideas", "nothing is working",
}

var masteryMarkers = []string{
	"i've got this", "ive got this", "i understand this now", "easy for me",
	"mastered", "this is simple now", "got the hang of", "second nature",
	"no longer a challenge",
}

var narrativeMarkers = []string{
	"story", "imagine", "scenario", "walk me through", "journey",
	"paint a picture", "day in the life",
}

var comparisonMarkers = []string{
	"compare", "versus", "vs", "difference between", "better than", "instead of",
	"compared to", "rather than", "which is better", "pros and cons",
}

var perspectiveShiftMarkers = []string{
	"another angle", "different perspective", "other point of view",
	"flip side", "devil's advocate", "devils advocate", "through the eyes of",
	"what would a critic say", "step back and look",
}

// tierTables maps configurable tier names to their word lists. Only the
// level-derivation tiers are extensible; the interaction pattern groups stay
// fixed because their cross-group priority is part of the contract.
var tierTables = map[string]*[]string{
	"understanding_high": &understandingHighWords,
	"understanding_low":  &understandingLowWords,
	"uncertainty":        &uncertaintyWords,
	"confident":          &confidentWords,
	"engagement_high":    &engagementHighWords,
	"engagement_low":     &engagementLowWords,
}

// ExtendTier appends words to one of the named level tiers so a deployment
// can add domain vocabulary without recompiling. Words are lower-cased on
// the way in. Call during startup only; extension is not synchronized with
// classification.
func ExtendTier(tier string, words ...string) error {
	table, ok := tierTables[tier]
	if !ok {
		return fmt.Errorf("unknown word tier %q", tier)
	}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		*table = append(*table, w)
	}
	return nil
}

// TierNames returns the extensible tier names, sorted.
func TierNames() []string {
	names := make([]string, 0, len(tierTables))
	for name := range tierTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
