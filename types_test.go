package edgeshelf_test

import (
	"testing"

	"github.com/sagarc03/edgeshelf"
	"github.com/stretchr/testify/assert"
)

func TestTables_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tables  edgeshelf.Tables
		wantErr bool
	}{
		{name: "valid name", tables: edgeshelf.Tables{MetaData: "edgeshelf_metadata"}, wantErr: false},
		{name: "leading underscore", tables: edgeshelf.Tables{MetaData: "_objects"}, wantErr: false},
		{name: "empty name", tables: edgeshelf.Tables{MetaData: ""}, wantErr: true},
		{name: "uppercase", tables: edgeshelf.Tables{MetaData: "Objects"}, wantErr: true},
		{name: "leading digit", tables: edgeshelf.Tables{MetaData: "1objects"}, wantErr: true},
		{name: "sql injection", tables: edgeshelf.Tables{MetaData: "objects; DROP TABLE x"}, wantErr: true},
		{name: "too long", tables: edgeshelf.Tables{MetaData: "a234567890123456789012345678901234567890123456789012345678901234"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tables.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
