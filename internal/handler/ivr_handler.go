package handler

import (
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultIVRMessage = "Hola, este es un mensaje automatizado. Si desea escuchar el mensaje nuevamente, presione 1."
	ivrGoodbye        = "Gracias, adiós."
	ivrVoice          = "alice"
	ivrLanguage       = "es-ES"
	ivrRepeatDigit    = "1"
)

// TwiML call-control documents returned to the voice platform.

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Gather  *twimlGather `xml:"Gather,omitempty"`
	Say     []twimlSay   `xml:"Say"`
	Hangup  *struct{}    `xml:"Hangup,omitempty"`
}

type twimlGather struct {
	NumDigits int      `xml:"numDigits,attr"`
	Action    string   `xml:"action,attr"`
	Timeout   int      `xml:"timeout,attr"`
	Method    string   `xml:"method,attr"`
	Say       twimlSay `xml:"Say"`
}

type twimlSay struct {
	Voice    string `xml:"voice,attr"`
	Language string `xml:"language,attr"`
	Text     string `xml:",chardata"`
}

// RegisterIVRRoutes mounts the voice-call webhooks.
func RegisterIVRRoutes(router fiber.Router) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Hola Mundo")
	})
	router.Post("/inicio", IVRStart)
	router.Post("/procesar_opcion", IVROption)
}

// IVRStart reads the message and offers to repeat it on key 1.
func IVRStart(c *fiber.Ctx) error {
	return renderTwiML(c, gatherResponse(ivrMessage(c)))
}

// IVROption repeats the message when the caller pressed 1 and hangs up
// otherwise.
func IVROption(c *fiber.Ctx) error {
	if strings.TrimSpace(c.FormValue("Digits")) == ivrRepeatDigit {
		return renderTwiML(c, gatherResponse(ivrMessage(c)))
	}
	return renderTwiML(c, twimlResponse{
		Say:    []twimlSay{say(ivrGoodbye)},
		Hangup: &struct{}{},
	})
}

func ivrMessage(c *fiber.Ctx) string {
	if msg := strings.TrimSpace(c.Query("mensaje")); msg != "" {
		return msg
	}
	return DefaultIVRMessage
}

func gatherResponse(message string) twimlResponse {
	return twimlResponse{
		Gather: &twimlGather{
			NumDigits: 1,
			Action:    "/procesar_opcion?mensaje=" + url.QueryEscape(message),
			Timeout:   5,
			Method:    fiber.MethodPost,
			Say:       say(message),
		},
		Say:    []twimlSay{say(ivrGoodbye)},
		Hangup: &struct{}{},
	}
}

func say(text string) twimlSay {
	return twimlSay{Voice: ivrVoice, Language: ivrLanguage, Text: text}
}

func renderTwiML(c *fiber.Ctx, doc twimlResponse) error {
	body, err := xml.Marshal(doc)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Send(append([]byte(xml.Header), body...))
}
