package sms

import (
	"bytes"

	"github.com/alecthomas/template"
	"github.com/dilshat/birthday-sender/model"
)

const (
	directTpl       = `Happy birthday, {{.SubjectName}}! Wishing you a wonderful year ahead.`
	studentPeerTpl  = `Today is {{.SubjectName}}'s birthday. Don't forget to congratulate your classmate!`
	staffPeerTpl    = `Today is {{.SubjectName}}'s birthday. Don't forget to congratulate your colleague!`
	hodStudentTpl   = `Today is the birthday of {{.SubjectName}}, a student of your department.`
	hodStaffTpl     = `Today is the birthday of {{.SubjectName}}, a member of your department staff.`
	fallbackTextTpl = `Today is {{.SubjectName}}'s birthday.`
)

// Renderer turns an outbound message into sms text
type Renderer interface {
	Render(msg model.OutboundMessage) (string, error)
}

type renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (Renderer, error) {
	r := &renderer{templates: map[string]*template.Template{}}
	for name, text := range map[string]string{
		templateName(model.DIRECT, model.STUDENT): directTpl,
		templateName(model.DIRECT, model.STAFF):   directTpl,
		templateName(model.PEER, model.STUDENT):   studentPeerTpl,
		templateName(model.PEER, model.STAFF):     staffPeerTpl,
		templateName(model.HOD, model.STUDENT):    hodStudentTpl,
		templateName(model.HOD, model.STAFF):      hodStaffTpl,
		"":                                        fallbackTextTpl,
	} {
		tpl, err := template.New(name).Parse(text)
		if err != nil {
			return nil, err
		}
		r.templates[name] = tpl
	}
	return r, nil
}

func templateName(kind model.MessageKind, personType model.PersonType) string {
	return string(kind) + "/" + string(personType)
}

func (r *renderer) Render(msg model.OutboundMessage) (string, error) {
	tpl, ok := r.templates[templateName(msg.Kind, msg.PersonType)]
	if !ok {
		tpl = r.templates[""]
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}
