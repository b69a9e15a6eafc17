package salesforce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Account is the slice of a Salesforce Account the mirror reads back.
type Account struct {
	ID      string `json:"Id" salesforce:"Id"`
	Name    string `json:"Name" salesforce:"Name"`
	Website string `json:"Website" salesforce:"Website"`
}

// DateLayout is the Salesforce date field format.
const DateLayout = "2006-01-02"

// FindAccountByName returns the first Account with exactly name, or nil.
func FindAccountByName(ctx context.Context, c Client, name string) (*Account, error) {
	soql := fmt.Sprintf("SELECT Id, Name, Website FROM Account WHERE Name = '%s' LIMIT 1", escapeSOQL(name))

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrapf(err, "sf: find account %q", name)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// CreateAccount inserts an Account and returns its id.
func CreateAccount(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if s, _ := fields["Name"].(string); s == "" {
		return "", eris.New("sf: account Name is required")
	}
	id, err := c.InsertOne(ctx, "Account", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create account")
	}
	return id, nil
}

// CreateOpportunity inserts an Opportunity under accountID.
func CreateOpportunity(ctx context.Context, c Client, accountID string, fields map[string]any) (string, error) {
	if accountID == "" {
		return "", eris.New("sf: account id is required for opportunity")
	}
	for _, k := range []string{"Name", "StageName", "CloseDate"} {
		if s, _ := fields[k].(string); s == "" {
			return "", eris.Errorf("sf: opportunity %s is required", k)
		}
	}
	fields["AccountId"] = accountID
	id, err := c.InsertOne(ctx, "Opportunity", fields)
	if err != nil {
		return "", eris.Wrapf(err, "sf: create opportunity for account %s", accountID)
	}
	return id, nil
}

// UpdateOpportunity patches an Opportunity.
func UpdateOpportunity(ctx context.Context, c Client, id string, fields map[string]any) error {
	if id == "" {
		return eris.New("sf: opportunity id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Opportunity", id, fields); err != nil {
		return eris.Wrapf(err, "sf: update opportunity %s", id)
	}
	return nil
}

// CreateTask inserts a Task related to whatID (an Account or Opportunity).
func CreateTask(ctx context.Context, c Client, whatID string, fields map[string]any) (string, error) {
	if s, _ := fields["Subject"].(string); s == "" {
		return "", eris.New("sf: task Subject is required")
	}
	if whatID != "" {
		fields["WhatId"] = whatID
	}
	id, err := c.InsertOne(ctx, "Task", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create task")
	}
	return id, nil
}

// maxNoteBody is the Salesforce Note.Body field limit.
const maxNoteBody = 32000

// CreateNote inserts a classic Note attached to parentID. Long bodies are
// truncated to the field limit.
func CreateNote(ctx context.Context, c Client, parentID, title, body string) (string, error) {
	if parentID == "" {
		return "", eris.New("sf: note parent id is required")
	}
	if title == "" {
		title = "(no subject)"
	}
	body = truncate(body, maxNoteBody)
	id, err := c.InsertOne(ctx, "Note", map[string]any{
		"ParentId": parentID,
		"Title":    truncate(title, 80),
		"Body":     body,
	})
	if err != nil {
		return "", eris.Wrapf(err, "sf: create note on %s", parentID)
	}
	return id, nil
}

// FormatDate renders t as a Salesforce date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// escapeSOQL escapes a string literal for a SOQL WHERE clause.
func escapeSOQL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
