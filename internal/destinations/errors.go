package destinations

import (
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notifyrelay/internal/types"
)

// awsThrottleCodes are AWS error codes that signal throttling. Throttling
// can ride a 4xx status but clears on its own, so it stays transient.
var awsThrottleCodes = map[string]struct{}{
	"Throttling":                {},
	"ThrottlingException":       {},
	"RequestThrottled":          {},
	"RequestThrottledException": {},
	"TooManyRequestsException":  {},
	"SlowDown":                  {},
}

// classifyAWSError maps an AWS SDK send failure onto the delivery taxonomy.
// Non-throttling 4xx responses (nonexistent queue, access denied) are
// permanent: redelivering the message cannot fix the target. Throttling,
// 5xx, and network-level failures are transient.
func classifyAWSError(op, msg string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, throttle := awsThrottleCodes[apiErr.ErrorCode()]; throttle {
			return types.Transient(op, msg, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return types.Permanent(op, msg, err)
		}
	}
	return types.Transient(op, msg, err)
}

// classifyAzureError maps an Azure Storage Queue failure. The azqueue SDK
// surfaces service rejections as *azcore.ResponseError with the HTTP status.
func classifyAzureError(op, msg string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return types.Permanent(op, msg, err)
		}
	}
	return types.Transient(op, msg, err)
}

// classifyServiceBusError maps a Service Bus send failure. The AMQP
// transport has no HTTP status; the SDK's stable error codes distinguish an
// unusable target from a recoverable link condition.
func classifyServiceBusError(op, msg string, err error) error {
	var sbErr *azservicebus.Error
	if errors.As(err, &sbErr) {
		switch sbErr.Code {
		case azservicebus.CodeNotFound, azservicebus.CodeUnauthorizedAccess:
			return types.Permanent(op, msg, err)
		}
	}
	return types.Transient(op, msg, err)
}

// classifyPubSubError maps a Pub/Sub publish failure via its gRPC status
// code. Codes naming an unusable topic or rejected request are permanent;
// everything else (unavailable, deadline, resource exhausted) is transient.
func classifyPubSubError(op, msg string, err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied,
		codes.Unauthenticated, codes.FailedPrecondition:
		return types.Permanent(op, msg, err)
	}
	return types.Transient(op, msg, err)
}
