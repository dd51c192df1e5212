package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/allballa/dental-scheduler/internal/store"
)

// Sender is the write side of a model connection.
type Sender interface {
	Send(v any) error
}

// instructions pins the assistant to the provided availability list
// and to the fixed confirmation phrases the booking detector keys on.
const instructions = "You are a helpful AI receptionist working at Allballa Dental Center. " +
	"Ignore any default greetings. Use the provided custom greeting exactly. " +
	"**CRITICAL RULES for Availability & Booking:**\n" +
	"1. You have been provided with a list of currently available appointment slots. Refer **ONLY** to this list when discussing or offering appointments. Do not invent slots or dates.\n" +
	"2. If the provided list of available slots is EMPTY, you **MUST** inform the user clearly that there are currently no openings and suggest calling back later. Do not offer to schedule anything.\n" +
	"3. If the user asks for a date/time that is NOT on the provided availability list, you **MUST** state that the specific time is unavailable. Only suggest alternatives *if* there are other slots available on the provided list. If the list is empty, reiterate that nothing is available.\n" +
	"4. **NEVER** use confirmation phrases ('I have scheduled...', 'Your appointment is confirmed...', 'Successfully booked...') unless you have first identified a specific, available slot **from the provided list** and the user has explicitly agreed to book that exact slot.\n" +
	"When you have successfully confirmed an available slot with the user and are about to finalize the booking, you MUST use **exactly one** of the following phrases and nothing else immediately after:\n" +
	"- 'I have scheduled your appointment for [DATE/TIME]'\n" +
	"- 'Your appointment is confirmed for [DATE/TIME]'\n" +
	"- 'Successfully booked for [DATE/TIME]'\n" +
	"Replace [DATE/TIME] with the correct details. Do not add extra words before or after these specific phrases when confirming the final booking.\n" +
	"ALWAYS:\n" +
	"1. State dates as 'March 30th, 2024 from 3:00 PM to 4:00 PM'\n" +
	"2. Include both date and time ranges\n" +
	"3. Wait for confirmation before ending call\n" +
	"4. Listen carefully for the patient's preferred date and time\n" +
	"5. Repeat back the date and time to confirm understanding\n" +
	"6. Use the exact confirmation phrases when booking is successful\n" +
	"Respond promptly to user speech with available slots or clarification."

// NewSessionUpdate builds the session.update that configures audio
// formats, voice and server-side turn detection.
func NewSessionUpdate(voice string) SessionUpdate {
	return SessionUpdate{
		Type: "session.update",
		Session: SessionConfig{
			TurnDetection: TurnDetection{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMS:   300,
				SilenceDurationMS: 600,
			},
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Voice:             voice,
			Instructions:      instructions,
			Modalities:        []string{"text", "audio"},
			Temperature:       0.8,
		},
	}
}

func historyContext(p *store.Patient) string {
	if p.MedicalHistory == "" {
		return ""
	}
	return fmt.Sprintf("I see from your records that your medical history includes %s. ", p.MedicalHistory)
}

func patientAction(p *store.Patient) string {
	if p.Action == "" {
		return "your appointment"
	}
	return p.Action
}

// buildSystemMessage grounds the conversation in who is being called,
// today's date, and the current open slots.
func buildSystemMessage(p *store.Patient, availability []store.Slot, now time.Time) string {
	var lines []string
	for _, slot := range availability {
		lines = append(lines, "- "+slot.Display())
	}
	return fmt.Sprintf(
		"You are a helpful AI receptionist working at Allballa Dental Center. "+
			"Please ignore any default greetings and use the following style when greeting the caller: "+
			"'Hello there %s! This is AI Dental Assistant OnasiHelper calling from Allballa Dental Center. "+
			"%sI'm reaching out regarding %s. Your next follow-up appointment is due, "+
			"and I'd like to schedule it for you. Do you have a preferred date and time?'. "+
			"Always follow the center's protocols and provide accurate scheduling information."+
			"Current appointment availabilities include:\n%s\n"+
			"If not available, suggest the nearest options. Always verify patient acceptance. "+
			"Today's date is %s and current time is %s. "+
			"When discussing appointments:\n"+
			"1. Acknowledge the patient's preference\n"+
			"2. Check availability against clinic schedule\n"+
			"3. If available, confirm with exact date/time using 'I have scheduled your appointment for [DATE/TIME]'\n"+
			"4. If unavailable, suggest nearest options\n"+
			"5. Always verify patient acceptance\n"+
			"6. Listen carefully for date/time mentions in patient speech\n"+
			"7. When a patient mentions a date, always respond with confirmation of that date\n"+
			"8. Use the exact booking confirmation phrases when an appointment is confirmed\n",
		p.Name,
		historyContext(p),
		patientAction(p),
		strings.Join(lines, "\n"),
		now.Format("January 02, 2006"),
		now.Format("03:04 PM MST"),
	)
}

// buildGreeting is the scripted first utterance of an outbound call.
func buildGreeting(p *store.Patient, availability []store.Slot) string {
	availabilityMessage := "I see that we currently have no open appointment slots."
	if len(availability) > 0 {
		var mention []string
		for i, slot := range availability {
			if i == 3 {
				break
			}
			mention = append(mention, slot.Display())
		}
		availabilityMessage = fmt.Sprintf("Our available slots currently include: %s.", strings.Join(mention, ", "))
	}
	return fmt.Sprintf(
		"Hello there %s! This is AI Dental Assistant OnasiHelper calling from Allballa Dental Center. "+
			"Would you prefer to continue in English or Arabic? "+
			"%s"+
			"I'm reaching out regarding %s. "+
			"Your next follow-up appointment is due, and I'd like to schedule it for you. "+
			"%s Do you have a preferred date and time, or would you like to hear more options?",
		p.Name,
		historyContext(p),
		patientAction(p),
		availabilityMessage,
	)
}

const inboundGreeting = "Hello! Thank you for calling Allballa Dental Center. " +
	"This is AI Dental Assistant OnasiHelper. How can I help you today?"

// InitializeOutbound configures the session and seeds the scripted
// outreach conversation: system context, the greeting the model must
// speak, and the trigger for its first response.
func InitializeOutbound(conn Sender, voice string, p *store.Patient, availability []store.Slot, now time.Time) error {
	if err := conn.Send(NewSessionUpdate(voice)); err != nil {
		return fmt.Errorf("realtime: session update: %w", err)
	}
	if err := conn.Send(NewTextItem("system", buildSystemMessage(p, availability, now))); err != nil {
		return fmt.Errorf("realtime: system message: %w", err)
	}
	if err := conn.Send(NewTextItem("assistant", buildGreeting(p, availability))); err != nil {
		return fmt.Errorf("realtime: greeting: %w", err)
	}
	if err := conn.Send(NewResponseCreate()); err != nil {
		return fmt.Errorf("realtime: trigger response: %w", err)
	}
	return nil
}

// InitializeInbound configures the session for a caller-initiated
// call and has the model greet them.
func InitializeInbound(conn Sender, voice string) error {
	if err := conn.Send(NewSessionUpdate(voice)); err != nil {
		return fmt.Errorf("realtime: session update: %w", err)
	}
	if err := conn.Send(NewTextItem("assistant", inboundGreeting)); err != nil {
		return fmt.Errorf("realtime: greeting: %w", err)
	}
	if err := conn.Send(NewResponseCreate()); err != nil {
		return fmt.Errorf("realtime: trigger response: %w", err)
	}
	return nil
}
