package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClient(t *testing.T) {
	tests := []struct {
		name string
		data string
		want any
	}{
		{
			name: "createRoom",
			data: `{"requestAction":"createRoom","name":"movie night"}`,
			want: &CreateRoom{RequestAction: ActionCreateRoom, Name: "movie night"},
		},
		{
			name: "joinRoom",
			data: `{"requestAction":"joinRoom","roomId":"AB12CD"}`,
			want: &JoinRoom{RequestAction: ActionJoinRoom, RoomID: "AB12CD"},
		},
		{
			name: "leaveRoom",
			data: `{"requestAction":"leaveRoom"}`,
			want: &LeaveRoom{RequestAction: ActionLeaveRoom},
		},
		{
			name: "updateStream",
			data: `{"requestAction":"updateStream","updateAction":"play","timestamp":1700000000000,"videoTimestamp":12.5}`,
			want: &UpdateStream{RequestAction: ActionUpdateStream, UpdateAction: UpdatePlay, Timestamp: 1700000000000, VideoTimestamp: 12.5},
		},
		{
			name: "startVideo",
			data: `{"requestAction":"startVideo","videoUrl":"http://v","videoTimestamp":0,"playing":true}`,
			want: &StartVideo{RequestAction: ActionStartVideo, VideoURL: "http://v", Playing: true},
		},
		{
			name: "stopVideo",
			data: `{"requestAction":"stopVideo"}`,
			want: &StopVideo{RequestAction: ActionStopVideo},
		},
		{
			name: "forceSync",
			data: `{"requestAction":"forceSync"}`,
			want: &ForceSync{RequestAction: ActionForceSync},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClient([]byte(tt.data))
			if err != nil {
				t.Fatalf("DecodeClient() error: %v", err)
			}
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(tt.want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("DecodeClient() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestDecodeClientUnknownAction(t *testing.T) {
	_, err := DecodeClient([]byte(`{"requestAction":"selfDestruct"}`))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}

func TestDecodeClientBadJSON(t *testing.T) {
	if _, err := DecodeClient([]byte(`{`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeServer(t *testing.T) {
	t.Run("joinRoom decodes as JoinedRoom with host", func(t *testing.T) {
		msg, err := DecodeServer([]byte(`{"requestAction":"joinRoom","roomId":"AB12CD","hostId":"h1"}`))
		if err != nil {
			t.Fatal(err)
		}
		jr, ok := msg.(*JoinedRoom)
		if !ok {
			t.Fatalf("got %T, want *JoinedRoom", msg)
		}
		if jr.RoomID != "AB12CD" || jr.HostID != "h1" {
			t.Errorf("unexpected fields: %+v", jr)
		}
	})

	t.Run("syncVideo round trip", func(t *testing.T) {
		b, err := json.Marshal(NewSyncVideo("http://v", 7.25, true, 1700000000000))
		if err != nil {
			t.Fatal(err)
		}
		msg, err := DecodeServer(b)
		if err != nil {
			t.Fatal(err)
		}
		sv := msg.(*SyncVideo)
		if sv.VideoURL != "http://v" || sv.VideoTimestamp != 7.25 || !sv.Playing || sv.Timestamp != 1700000000000 {
			t.Errorf("unexpected fields: %+v", sv)
		}
	})

	t.Run("client-only action is unknown to a client", func(t *testing.T) {
		_, err := DecodeServer([]byte(`{"requestAction":"forceSync"}`))
		if !errors.Is(err, ErrUnknownAction) {
			t.Errorf("err = %v, want ErrUnknownAction", err)
		}
	})
}

func TestConstructorsSetTags(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		msg  any
	}{
		{"createRoom", ActionCreateRoom, NewCreateRoom("x")},
		{"joinRoom", ActionJoinRoom, NewJoinRoom("r")},
		{"leaveRoom", ActionLeaveRoom, NewLeaveRoom()},
		{"updateStream", ActionUpdateStream, NewUpdateStream(UpdatePause, 1, 2)},
		{"startVideo", ActionStartVideo, NewStartVideo("u", 0, false)},
		{"stopVideo", ActionStopVideo, NewStopVideo()},
		{"forceSync", ActionForceSync, NewForceSync()},
		{"sessionCreated", ActionSessionCreated, NewSessionCreated("s")},
		{"joinedRoom", ActionJoinRoom, NewJoinedRoom("r", "h")},
		{"syncVideo", ActionSyncVideo, NewSyncVideo("u", 0, false, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			var env envelope
			if err := json.Unmarshal(b, &env); err != nil {
				t.Fatal(err)
			}
			if env.RequestAction != tt.tag {
				t.Errorf("tag = %q, want %q", env.RequestAction, tt.tag)
			}
		})
	}
}
