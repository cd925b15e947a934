package mock

import (
	"github.com/stretchr/testify/mock"

	"github.com/package-linker/internal/object"
	"github.com/package-linker/internal/property"
)

// MockCodec is a mock implementation of the property Codec interface.
type MockCodec struct {
	mock.Mock
}

// Deserialize mocks the Deserialize method.
func (m *MockCodec) Deserialize(obj *object.Object, r property.Reader) error {
	args := m.Called(obj, r)
	return args.Error(0)
}

// ExpectDeserialize sets up an expectation for Deserialize of the object
// named name.
func (m *MockCodec) ExpectDeserialize(name string, err error) *mock.Call {
	return m.On("Deserialize", mock.MatchedBy(func(obj *object.Object) bool {
		return obj.Name() == name
	}), mock.Anything).Return(err)
}
