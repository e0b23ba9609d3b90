// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package auth

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"

	"github.com/fernet/fernet-go"
)

// tokens in the access file don't expire
const noExpiry = -1

// This type accepts a valid access token in exchange for a user record. It
// guards the validation service, whose clients are listed in an access file
// encrypted with the service's secret (a Fernet key).
type Authenticator struct {
	UserForToken map[string]User
}

// Reads and decrypts the access file at the given path with the given
// Fernet key, returning a mapping of access tokens to users.
func ReadAccessTokenFile(tokenFilePath, secret string) (map[string]User, error) {
	encryptedText, err := os.ReadFile(tokenFilePath)
	if err != nil {
		return nil, &AccessFileError{Path: tokenFilePath, Message: err.Error()}
	}

	keys, err := fernet.DecodeKeys(secret)
	if err != nil {
		return nil, &AccessFileError{Path: tokenFilePath, Message: "invalid secret: " + err.Error()}
	}
	plainText := fernet.VerifyAndDecrypt(bytes.TrimSpace(encryptedText), noExpiry, keys)
	if plainText == nil {
		return nil, &AccessFileError{Path: tokenFilePath, Message: "cannot decrypt with the given secret"}
	}

	// the plaintext content is a tab-delimited file with records like so:
	// Name\tUsername\tEmail\tOrganization\tToken
	reader := csv.NewReader(bytes.NewReader(plainText))
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = 5

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &AccessFileError{Path: tokenFilePath, Message: err.Error()}
	}

	userRecords := make(map[string]User)
	for _, record := range records {
		token := strings.TrimSpace(record[4])
		userRecords[token] = User{
			Name:         record[0],
			Username:     record[1],
			Email:        record[2],
			Organization: record[3],
		}
	}

	return userRecords, nil
}

// Encrypts the given plaintext access records (see ReadAccessTokenFile) with
// the given Fernet key, writing them to the given path.
func WriteAccessTokenFile(tokenFilePath, secret string, users map[string]User) error {
	key, err := fernet.DecodeKey(secret)
	if err != nil {
		return &AccessFileError{Path: tokenFilePath, Message: "invalid secret: " + err.Error()}
	}
	var plainText bytes.Buffer
	plainText.WriteString("# Name | Username | Email | Organization | Token\n")
	writer := csv.NewWriter(&plainText)
	writer.Comma = '\t'
	for token, user := range users {
		writer.Write([]string{user.Name, user.Username, user.Email, user.Organization, token})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	token, err := fernet.EncryptAndSign(plainText.Bytes(), key)
	if err != nil {
		return err
	}
	return os.WriteFile(tokenFilePath, token, 0600)
}

// creates an authenticator for the users listed in the given access file
func NewAuthenticator(tokenFilePath, secret string) (*Authenticator, error) {
	var a Authenticator
	var err error
	a.UserForToken, err = ReadAccessTokenFile(tokenFilePath, secret)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// given an access token, returns a User or an error
func (a *Authenticator) GetUser(accessToken string) (User, error) {
	if user, found := a.UserForToken[accessToken]; found {
		return user, nil
	} else {
		return User{}, &UnauthorizedError{Message: "invalid access token"}
	}
}
