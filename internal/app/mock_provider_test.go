package app

import (
	context "context"
	reflect "reflect"

	messaging "estirar/internal/domain/messaging"

	gomock "github.com/golang/mock/gomock"
)

// MockProvider is a mock of Provider interface
type MockProvider struct {
	ctrl     *gomock.Controller
	recorder *MockProviderMockRecorder
}

// MockProviderMockRecorder is the mock recorder for MockProvider
type MockProviderMockRecorder struct {
	mock *MockProvider
}

// NewMockProvider creates a new mock instance
func NewMockProvider(ctrl *gomock.Controller) *MockProvider {
	mock := &MockProvider{ctrl: ctrl}
	mock.recorder = &MockProviderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use
func (m *MockProvider) EXPECT() *MockProviderMockRecorder {
	return m.recorder
}

// SendText mocks base method
func (m *MockProvider) SendText(ctx context.Context, to, body string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendText", ctx, to, body)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendText indicates an expected call of SendText
func (mr *MockProviderMockRecorder) SendText(ctx, to, body interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendText", reflect.TypeOf((*MockProvider)(nil).SendText), ctx, to, body)
}

// SendTemplate mocks base method
func (m *MockProvider) SendTemplate(ctx context.Context, to string, tmpl messaging.Template) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendTemplate", ctx, to, tmpl)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SendTemplate indicates an expected call of SendTemplate
func (mr *MockProviderMockRecorder) SendTemplate(ctx, to, tmpl interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendTemplate", reflect.TypeOf((*MockProvider)(nil).SendTemplate), ctx, to, tmpl)
}
