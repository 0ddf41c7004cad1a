package airtable

import (
	"context"
	"fmt"
	"net/http"
)

// metaTables mirrors the metadata API's table listing.
type metaTables struct {
	Tables []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Fields []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	} `json:"tables"`
}

// ValidateSchema checks the configured field map against what the base
// actually reports, eagerly at startup. Any missing field or type drift is a
// schema/contract mismatch: fatal, never retried, because writing through a
// drifted mapping risks silent data loss.
func (c *Client) ValidateSchema(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/meta/bases/%s/tables", c.baseURL, c.baseID)
	var meta metaTables
	if err := c.doJSON(ctx, "fetch schema", http.MethodGet, endpoint, nil, &meta); err != nil {
		return err
	}

	jobFields, err := tableFields(meta, c.jobsTableID)
	if err != nil {
		return err
	}
	skillFields, err := tableFields(meta, c.skillsTableID)
	if err != nil {
		return err
	}

	for _, m := range c.policy.FieldMap {
		got, ok := jobFields[m.Field]
		if !ok {
			return fmt.Errorf("%w: jobs table has no field %q (mapped from column %q)",
				ErrSchemaMismatch, m.Field, m.Column)
		}
		if got != m.Type {
			return fmt.Errorf("%w: jobs field %q is %s, mapping declares %s",
				ErrSchemaMismatch, m.Field, got, m.Type)
		}
	}

	// Triage-owned fields the reconciler reads directly.
	if got, ok := jobFields[statusField]; !ok {
		return fmt.Errorf("%w: jobs table has no %q field", ErrSchemaMismatch, statusField)
	} else if got != "singleSelect" {
		return fmt.Errorf("%w: jobs field %q is %s, want singleSelect", ErrSchemaMismatch, statusField, got)
	}
	if got, ok := jobFields[lastModifiedField]; ok && got != "lastModifiedTime" {
		return fmt.Errorf("%w: jobs field %q is %s, want lastModifiedTime", ErrSchemaMismatch, lastModifiedField, got)
	}

	if _, ok := skillFields[skillNameField]; !ok {
		return fmt.Errorf("%w: skills table has no %q field", ErrSchemaMismatch, skillNameField)
	}
	return nil
}

func tableFields(meta metaTables, tableID string) (map[string]string, error) {
	for _, t := range meta.Tables {
		if t.ID != tableID && t.Name != tableID {
			continue
		}
		fields := make(map[string]string, len(t.Fields))
		for _, f := range t.Fields {
			fields[f.Name] = f.Type
		}
		return fields, nil
	}
	return nil, fmt.Errorf("%w: base has no table %q", ErrSchemaMismatch, tableID)
}
