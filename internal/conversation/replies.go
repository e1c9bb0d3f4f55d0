package conversation

import (
	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/flow"
)

const greetingText = `Hello! I'm your city services assistant. I can help you with:

• **Pay bills** (water, electricity, gas)
• **Apply for permits** (garage sale, construction, business license)
• **Pay tickets or fines** (parking, traffic violations)
• **Report issues** (potholes, streetlights and more)
• **Check application status**

Just tell me what you'd like to do in your own words, for example "I want to pay my water bill" or "There's a pothole on Main Street."

How can I help you today?`

const menuText = "Sure! Here's what I can help you with. Which service do you need?"

const farewellText = "You're welcome! Have a great day. If you need anything else from the city, I'm here to help."

const clarificationText = `I'm here to help with city services! I can assist you with:

• **"I want to pay my bill"**
• **"I need a permit"**
• **"I want to pay a ticket"**
• **"I want to report an issue"**
• **"Check my application status"**

Just tell me what you'd like to do, and I'll guide you through it step by step!`

const escalationText = "Of course! Let me connect you with a human representative who can provide personalized assistance. Please hold on for just a moment."

const faultText = "I'm experiencing some technical difficulties right now. Let me connect you with a human representative who can help you immediately."

func escalationReply() *Reply {
	return &Reply{Text: escalationText, Intent: domain.IntentEscalate, NeedsEscalation: true}
}

func clarificationReply() *Reply {
	return &Reply{Text: clarificationText, Intent: domain.IntentOther, Options: flow.MenuOptions}
}

func faultReply(sessionID string) *Reply {
	return &Reply{
		SessionID:       sessionID,
		Text:            faultText,
		Intent:          domain.IntentEscalate,
		NeedsEscalation: true,
	}
}
