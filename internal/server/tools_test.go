package server

import (
	"testing"

	"github.com/ironsheep/board-locator-mcp/internal/locator"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"board_detect_fiducials",
		"board_rectify",
		"marker_locate",
		"shape_classify",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("expected %d tools, got %d", len(expectedTools), len(tools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema missing properties")
			}

			required, ok := tool.InputSchema["required"].([]string)
			if !ok {
				t.Fatal("InputSchema missing required list")
			}
			for _, name := range required {
				if _, ok := props[name]; !ok {
					t.Errorf("required field %s is not a property", name)
				}
			}
		})
	}
}

func TestToolDefinitions_ImageToolsRequirePath(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "shape_classify" {
			continue
		}
		required := tool.InputSchema["required"].([]string)
		if len(required) == 0 || required[0] != "path" {
			t.Errorf("%s should require path first, got %v", tool.Name, required)
		}
	}
}

func TestToolDefinitions_MagnificationBounds(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		props := tool.InputSchema["properties"].(map[string]interface{})
		mp, ok := props["magnification"].(map[string]interface{})
		if !ok {
			continue
		}
		if mp["minimum"] != 1 {
			t.Errorf("%s: magnification minimum got %v, want 1", tool.Name, mp["minimum"])
		}
		if mp["maximum"] != locator.MaxMagnification {
			t.Errorf("%s: magnification maximum got %v, want %d", tool.Name, mp["maximum"], locator.MaxMagnification)
		}
	}
}
