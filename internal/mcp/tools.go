package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func boolProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

func stringListProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        "scan",
		Description: "Rescan the project root from disk, discarding unsaved edits to projects, and summarize projects, load failures and configuration/platform axes.",
		InputSchema: objectSchema(nil),
	}, s.handleScan)

	s.addTool(&mcp.Tool{
		Name:        "list_properties",
		Description: "List every property defined locally by the loaded projects, with its values and the projects holding each value.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"min_count": {Type: "integer", Description: "Only list properties defined by at least this many projects"},
		}),
	}, s.handleListProperties)

	s.addTool(&mcp.Tool{
		Name:        "show_property",
		Description: "Show the values of one property and the projects holding each. Unknown names return close matches.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name": stringProp("Property name, case-insensitive"),
		}, "name"),
	}, s.handleShowProperty)

	s.addTool(&mcp.Tool{
		Name:        "move_property",
		Description: "Remove a property from every project and define it once in the property sheet. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name":  stringProp("Property name"),
			"value": stringProp("Value to write to the sheet; empty only removes"),
		}, "name"),
	}, s.handleMoveProperty)

	s.addTool(&mcp.Tool{
		Name:        "remove_properties",
		Description: "Remove properties from every project that defines them under the active configuration. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"names": stringListProp("Property names"),
		}, "names"),
	}, s.handleRemoveProperties)

	s.addTool(&mcp.Tool{
		Name:        "move_value",
		Description: "Move one value of a property to the sheet, removing the property only from the projects that hold that value. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name":        stringProp("Property name"),
			"value":       stringProp("Value as any owning project spells it"),
			"all_configs": boolProp("Delete the property from every conditional branch, not only the active one"),
		}, "name", "value"),
	}, s.handleMoveValue)

	s.addTool(&mcp.Tool{
		Name:        "remove_value",
		Description: "Remove a property only from the projects holding one value. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name":  stringProp("Property name"),
			"value": stringProp("Value as any owning project spells it"),
		}, "name", "value"),
	}, s.handleRemoveValue)

	s.addTool(&mcp.Tool{
		Name:        "remove_xml",
		Description: "Delete properties from the markup of every project in every conditional branch. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"names": stringListProp("Property names"),
		}, "names"),
	}, s.handleRemoveXML)

	s.addTool(&mcp.Tool{
		Name:        "remove_sheet_properties",
		Description: "Remove from every project the properties the sheet already defines. Call save to write the files.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"all_configs": boolProp("Delete from every conditional branch, not only the active one"),
		}),
	}, s.handleRemoveSheetProperties)

	s.addTool(&mcp.Tool{
		Name:        "set_global",
		Description: "Re-evaluate every project under a different global property, e.g. Configuration=Release.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name":  stringProp("Global property name"),
			"value": stringProp("New value"),
		}, "name", "value"),
	}, s.handleSetGlobal)

	s.addTool(&mcp.Tool{
		Name:        "save",
		Description: "Write the sheet and every changed project, then import the sheet into projects that lack it.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"force": boolProp("Write every project, not only changed ones"),
		}),
	}, s.handleSave)

	s.addTool(&mcp.Tool{
		Name:        "clean",
		Description: "Delete empty properties and empty groups from every project and save the projects that changed.",
		InputSchema: objectSchema(nil),
	}, s.handleClean)

	s.addTool(&mcp.Tool{
		Name:        "attach_sheet",
		Description: "Import the property sheet into every project that does not import it yet, saving each one.",
		InputSchema: objectSchema(nil),
	}, s.handleAttachSheet)

	s.addTool(&mcp.Tool{
		Name:        "build_report",
		Description: "Report which projects build into the shared output directory and, optionally, whether their output file is there.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"output_dir": stringProp("Expected output directory, relative to the root unless absolute"),
			"verify":     boolProp("Also require the output file to exist"),
		}, "output_dir"),
	}, s.handleBuildReport)
}
