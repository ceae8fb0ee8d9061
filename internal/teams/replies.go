package teams

import (
	"math/rand"
	"strings"
)

var jokes = []string{
	"I went to buy some camo pants but couldn't find any.",
	"It takes a lot of balls to golf the way I do.",
	"Two fish are in a tank. One says, 'How do you drive this thing?'",
	"I got a new pair of gloves today, but they're both 'lefts,' which on the one hand is great, but on the other, it's just not right.",
	"Two wifi engineers got married. The reception was fantastic.",
	"A dung beetle walks into a bar and asks, 'Is this stool taken?'",
	"I buy all my guns from a guy called T-Rex. He's a small arms dealer.",
	"A Freudian slip is when you say one thing and mean your mother.",
	"What do you call a pudgy psychic? A four-chin teller.",
	"Dogs can't operate MRI machines. But catscan.",
	"What kind of music do chiropractors like? Hip pop.",
	"When life gives you melons, you might be dyslexic.",
	"The man who survived both mustard gas and pepper spray is a seasoned veteran now.",
}

// Reply decides what, if anything, the bot says back to a chat message.
// Returns empty when no canned response applies.
func Reply(content, sender string) string {
	msg := strings.ToLower(strings.NewReplacer("<p>", "", "</p>", "").Replace(content))

	switch {
	case strings.Contains(msg, "tell me a joke"):
		return jokes[rand.Intn(len(jokes))]
	case strings.Contains(msg, "hi"):
		return "hi"
	case strings.Contains(msg, "siri"), strings.Contains(msg, "alexa"):
		return "She's way out of my league"
	default:
		return ""
	}
}
