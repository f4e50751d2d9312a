package httpapi

import (
	"net/http"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

// Gates speak protobuf as a google.protobuf.Struct with the same field names
// as the JSON body.

func readVerifyProto(r *http.Request) (types.VerifyRequest, error) {
	var msg structpb.Struct
	if err := readProto(r, &msg); err != nil {
		return types.VerifyRequest{}, err
	}
	return VerifyRequestFromStruct(&msg), nil
}

func VerifyRequestFromStruct(s *structpb.Struct) types.VerifyRequest {
	f := s.GetFields()
	return types.VerifyRequest{
		Payload: f["payload"].GetStringValue(),
		GateID:  f["gate_id"].GetStringValue(),
	}
}

func VerifyResponseToStruct(resp types.VerifyResponse) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok":          structpb.NewBoolValue(resp.OK),
		"reason":      structpb.NewStringValue(resp.Reason),
		"scan_count":  structpb.NewNumberValue(float64(resp.ScanCount)),
		"max_scans":   structpb.NewNumberValue(float64(resp.MaxScans)),
		"status":      structpb.NewStringValue(resp.Status),
		"hint":        structpb.NewStringValue(resp.Hint),
		"server_time": structpb.NewStringValue(resp.ServerTime),
	}}
}

func writeVerifyProto(w http.ResponseWriter, status int, resp types.VerifyResponse) {
	writeProto(w, status, VerifyResponseToStruct(resp))
}
