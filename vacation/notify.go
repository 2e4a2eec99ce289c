/*
notify.go - Notification composition

PURPOSE:
  Builds the HTML email bodies dispatched at each lifecycle step. Sending
  is best-effort and owned by the Mailer; this file only composes.

  Manager notifications go to the full roster: first manager in roster
  order is the primary recipient, the rest are copied.
*/
package vacation

import (
	"bytes"
	"fmt"
	"html/template"
)

var mailTmpl = template.Must(template.New("mail").Parse(`
{{define "requester_received"}}<p>Hi {{.Name}},</p>
<p>Your vacation request for <b>{{.Start}}</b> to <b>{{.End}}</b> ({{.BusinessDays}} business days) was received and is pending manager approval.</p>{{end}}

{{define "requester_review"}}<p>Hi {{.Name}},</p>
<p>Your vacation request for <b>{{.Start}}</b> to <b>{{.End}}</b> is under review: {{.Reason}}</p>
<p>A manager will check coverage and follow up.</p>{{end}}

{{define "requester_decision"}}<p>Hi {{.Name}},</p>
<p>Your vacation request for <b>{{.Start}}</b> to <b>{{.End}}</b> changed status to <b>{{.Status}}</b>.</p>{{end}}

{{define "manager_new"}}<p>{{.Name}} requested vacation from <b>{{.Start}}</b> to <b>{{.End}}</b> ({{.BusinessDays}} business days).</p>
<p>No conflicts were found. The request is pending your decision.</p>{{end}}

{{define "manager_conflict"}}<p>{{.Name}} requested vacation from <b>{{.Start}}</b> to <b>{{.End}}</b> ({{.BusinessDays}} business days).</p>
<p>Coverage conflict: <b>{{.Conflict}}</b> on team {{.Team}} already has a {{.ConflictStatus}} request overlapping these dates. The request was flagged for review.</p>{{end}}
`))

type mailData struct {
	Name           string
	Start          string
	End            string
	BusinessDays   int
	Status         Status
	Reason         string
	Conflict       string
	ConflictStatus Status
	Team           string
}

func renderMail(name string, data mailData) string {
	var buf bytes.Buffer
	if err := mailTmpl.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are static; a render failure is a programming error.
		return fmt.Sprintf("<p>%s to %s</p>", data.Start, data.End)
	}
	return buf.String()
}

func requestData(req *Request) mailData {
	return mailData{
		Name:         req.RequesterName,
		Start:        req.StartDate.String(),
		End:          req.EndDate.String(),
		BusinessDays: req.BusinessDays,
	}
}

func composeRequesterReceived(req *Request) Message {
	return Message{
		To:       req.RequesterEmail,
		Subject:  fmt.Sprintf("Vacation request received (%s to %s)", req.StartDate, req.EndDate),
		HTMLBody: renderMail("requester_received", requestData(req)),
	}
}

func composeRequesterUnderReview(req *Request, reason string) Message {
	data := requestData(req)
	data.Reason = reason
	return Message{
		To:       req.RequesterEmail,
		Subject:  fmt.Sprintf("Vacation request under review (%s to %s)", req.StartDate, req.EndDate),
		HTMLBody: renderMail("requester_review", data),
	}
}

func composeRequesterDecision(req *Request, status Status) Message {
	data := requestData(req)
	data.Status = status
	return Message{
		To:       req.RequesterEmail,
		Subject:  fmt.Sprintf("Vacation request %s (%s to %s)", status, req.StartDate, req.EndDate),
		HTMLBody: renderMail("requester_decision", data),
	}
}

func composeManagerNewRequest(req *Request) Message {
	return Message{
		Subject:  fmt.Sprintf("New vacation request: %s (%s to %s)", req.RequesterName, req.StartDate, req.EndDate),
		HTMLBody: renderMail("manager_new", requestData(req)),
	}
}

func composeManagerConflict(req *Request, overlap *TeamOverlap) Message {
	data := requestData(req)
	data.Conflict = overlap.EmployeeName
	data.ConflictStatus = overlap.Status
	data.Team = overlap.Team
	return Message{
		Subject:  fmt.Sprintf("Vacation request needs review: %s (%s to %s)", req.RequesterName, req.StartDate, req.EndDate),
		HTMLBody: renderMail("manager_conflict", data),
	}
}
