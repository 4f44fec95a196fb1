package models

import "testing"

func TestValidateBlock(t *testing.T) {
	cases := []struct {
		name    string
		block   ContentBlock
		wantErr bool
	}{
		{"text", ContentBlock{ID: "b1", Type: BlockTypeText, Content: "hello"}, false},
		{"text without content", ContentBlock{ID: "b1", Type: BlockTypeText}, true},
		{"image", ContentBlock{ID: "b2", Type: BlockTypeImage, ObjectName: "images/a.png"}, false},
		{"image without object", ContentBlock{ID: "b2", Type: BlockTypeImage, Caption: "a"}, true},
		{"audio", ContentBlock{ID: "b3", Type: BlockTypeAudio, ObjectName: "audio/a.mp3"}, false},
		{"missing id", ContentBlock{Type: BlockTypeText, Content: "hello"}, true},
		{"unknown type", ContentBlock{ID: "b4", Type: "gif", ObjectName: "x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBlock(tc.block)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateBlock(%+v) error = %v, wantErr %v", tc.block, err, tc.wantErr)
			}
		})
	}
}

func TestNewMediaBlock_RejectsTextType(t *testing.T) {
	if _, err := NewMediaBlock("b1", BlockTypeText, "obj", ""); err == nil {
		t.Error("NewMediaBlock accepted the text type")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskStatusRunning.Terminal() {
		t.Error("running reported terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed/failed not reported terminal")
	}
}
